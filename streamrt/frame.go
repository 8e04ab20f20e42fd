package streamrt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Opcode identifies the kind of a framed-message-protocol frame.
type Opcode uint8

const (
	OpContinuation Opcode = iota
	OpText
	OpBinary
	OpEnd
	OpClose
	OpPing
	OpPong
)

// Default size limits: a single frame's payload and the in-memory
// reassembly buffer for a whole (possibly fragmented) message.
const (
	DefaultMaxFramePayload = 4 * 1024
	DefaultMaxMessageSize  = 64 * 1024
)

// frameHeader is the fixed header preceding every frame's payload.
type frameHeader struct {
	Opcode     Opcode
	Fragmented uint32 // total message size on the first frame of a fragmented message, 0 otherwise
	SzPayload  uint32
}

const frameHeaderLen = 1 + 4 + 4

func encodeFrame(h frameHeader, payload []byte) []byte {
	h.SzPayload = uint32(len(payload))
	buf := make([]byte, frameHeaderLen+len(payload))
	buf[0] = byte(h.Opcode)
	binary.BigEndian.PutUint32(buf[1:5], h.Fragmented)
	binary.BigEndian.PutUint32(buf[5:9], h.SzPayload)
	copy(buf[frameHeaderLen:], payload)
	return buf
}

func decodeFrameHeader(buf []byte) (frameHeader, error) {
	if len(buf) < frameHeaderLen {
		return frameHeader{}, errors.New("streamrt: short frame header")
	}
	return frameHeader{
		Opcode:     Opcode(buf[0]),
		Fragmented: binary.BigEndian.Uint32(buf[1:5]),
		SzPayload:  binary.BigEndian.Uint32(buf[5:9]),
	}, nil
}

func (o Opcode) isData() bool { return o == OpText || o == OpBinary }

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "CONTINUATION"
	case OpText:
		return "TEXT"
	case OpBinary:
		return "BIN"
	case OpEnd:
		return "END"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// FrameLimits bounds frame and message sizes; zero fields fall back to
// the package defaults.
type FrameLimits struct {
	MaxFramePayload int
	MaxMessageSize  int
}

func (l FrameLimits) normalize() FrameLimits {
	if l.MaxFramePayload <= 0 {
		l.MaxFramePayload = DefaultMaxFramePayload
	}
	if l.MaxMessageSize <= 0 {
		l.MaxMessageSize = DefaultMaxMessageSize
	}
	return l
}

// WriteMessage splits payload into frames no larger than limits'
// MaxFramePayload: the first frame carries the
// Opcode with Fragmented=total length when more than one frame is
// needed, middle frames are CONTINUATION, the last is END.
func WriteMessage(opcode Opcode, payload []byte, limits FrameLimits) [][]byte {
	limits = limits.normalize()
	if len(payload) <= limits.MaxFramePayload {
		return [][]byte{encodeFrame(frameHeader{Opcode: opcode}, payload)}
	}

	var frames [][]byte
	total := uint32(len(payload))
	first := payload[:limits.MaxFramePayload]
	frames = append(frames, encodeFrame(frameHeader{Opcode: opcode, Fragmented: total}, first))
	rest := payload[limits.MaxFramePayload:]
	for len(rest) > limits.MaxFramePayload {
		chunk := rest[:limits.MaxFramePayload]
		frames = append(frames, encodeFrame(frameHeader{Opcode: OpContinuation}, chunk))
		rest = rest[limits.MaxFramePayload:]
	}
	frames = append(frames, encodeFrame(frameHeader{Opcode: OpEnd}, rest))
	return frames
}
