package streamrt

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

type readerState int

const (
	stateIdle readerState = iota
	stateReadingHeader
	stateReadingPayload
)

// MessageReader drives the reader state machine idle -> reading-header ->
// reading-payload, reassembling a (possibly fragmented) TEXT/BIN message
// from a byte stream of frames.
type MessageReader struct {
	limits FrameLimits

	state       readerState
	headerBuf   []byte
	hdr         frameHeader
	payloadBuf  []byte
	payloadHave int

	assembling bool
	assembly   []byte
	firstOp    Opcode
}

// NewMessageReader creates a reader with the given limits (zero values
// fall back to the package defaults).
func NewMessageReader(limits FrameLimits) *MessageReader {
	return &MessageReader{limits: limits.normalize(), state: stateIdle}
}

// Message is a fully reassembled inbound message.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Feed consumes newly-read bytes, returning any fully reassembled
// messages and advancing internal state across calls. An error return
// means the caller should close the stream with status MSG|CLOSING.
func (r *MessageReader) Feed(data []byte) ([]Message, error) {
	var out []Message
	for len(data) > 0 {
		switch r.state {
		case stateIdle:
			r.headerBuf = nil
			r.state = stateReadingHeader
			fallthrough
		case stateReadingHeader:
			need := frameHeaderLen - len(r.headerBuf)
			n := min(need, len(data))
			r.headerBuf = append(r.headerBuf, data[:n]...)
			data = data[n:]
			if len(r.headerBuf) < frameHeaderLen {
				return out, nil
			}
			hdr, err := decodeFrameHeader(r.headerBuf)
			if err != nil {
				return out, err
			}
			if int(hdr.SzPayload) > r.limits.MaxFramePayload {
				return out, errors.New("streamrt: frame payload exceeds limit")
			}
			if hdr.Opcode == OpContinuation || hdr.Opcode == OpEnd {
				if !r.assembling {
					return out, errors.New("streamrt: CONTINUATION/END without preceding TEXT/BIN")
				}
			}
			r.hdr = hdr
			r.payloadBuf = make([]byte, hdr.SzPayload)
			r.payloadHave = 0
			r.state = stateReadingPayload
		case stateReadingPayload:
			n := min(len(r.payloadBuf)-r.payloadHave, len(data))
			copy(r.payloadBuf[r.payloadHave:], data[:n])
			r.payloadHave += n
			data = data[n:]
			if r.payloadHave < len(r.payloadBuf) {
				return out, nil
			}
			msg, err := r.completeFrame()
			if err != nil {
				return out, err
			}
			if msg != nil {
				out = append(out, *msg)
			}
			r.state = stateIdle
		}
	}
	return out, nil
}

func (r *MessageReader) completeFrame() (*Message, error) {
	hdr := r.hdr
	switch {
	case hdr.Opcode.isData() && hdr.Fragmented == 0:
		return &Message{Opcode: hdr.Opcode, Payload: r.finishPayload(hdr.Opcode, r.payloadBuf)}, nil
	case hdr.Opcode.isData() && hdr.Fragmented > 0:
		if int(hdr.Fragmented) > r.limits.MaxMessageSize {
			return nil, errors.New("streamrt: fragmented message exceeds limit")
		}
		r.assembling = true
		r.firstOp = hdr.Opcode
		r.assembly = make([]byte, 0, hdr.Fragmented)
		r.assembly = append(r.assembly, r.payloadBuf...)
		return nil, nil
	case hdr.Opcode == OpContinuation:
		r.assembly = append(r.assembly, r.payloadBuf...)
		if len(r.assembly) > r.limits.MaxMessageSize {
			return nil, errors.New("streamrt: assembled message exceeds limit")
		}
		return nil, nil
	case hdr.Opcode == OpEnd:
		r.assembly = append(r.assembly, r.payloadBuf...)
		payload := r.finishPayload(r.firstOp, r.assembly)
		r.assembling = false
		r.assembly = nil
		return &Message{Opcode: r.firstOp, Payload: payload}, nil
	default:
		return &Message{Opcode: hdr.Opcode, Payload: r.payloadBuf}, nil
	}
}

// finishPayload appends the trailing NUL required for TEXT messages
// (length includes it), leaving other opcodes untouched.
func (r *MessageReader) finishPayload(op Opcode, payload []byte) []byte {
	if op != OpText {
		return payload
	}
	return append(append([]byte(nil), payload...), 0)
}

// ValidUTF8 reports whether b (excluding any trailing NUL appended by
// finishPayload) is valid UTF-8, used by the websocket engine's TEXT
// fragmentation check.
func ValidUTF8(b []byte) bool {
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}
