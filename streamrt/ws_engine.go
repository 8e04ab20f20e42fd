package streamrt

import "unicode/utf8"

// WSRole names an endpoint's part in a websocket connection. WSEngine
// records the role but handles frames the same way for every role, and
// it runs no handshake; the handshakes live in ws_handshake.go.
type WSRole int

const (
	RoleClient WSRole = iota
	RoleServer
	RoleServerWorkerWithHandshake
	RoleServerWorkerPostHandshake
)

// WSEngine reassembles RFC 6455 frames into complete messages and
// enforces the fragmentation/UTF-8/size invariants of the RFC 6455 profile.
type WSEngine struct {
	role WSRole

	maxMessageSize int

	assembling bool
	firstOp    WSOpcode
	assembly   []byte

	inbuf []byte
}

// NewWSEngine creates an engine for role with the given max assembled
// message size (0 uses DefaultMaxMessageSize).
func NewWSEngine(role WSRole, maxMessageSize int) *WSEngine {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &WSEngine{role: role, maxMessageSize: maxMessageSize}
}

// WSResult is either a completed data message, a control frame to act
// on, or a protocol close triggered by e.Feed.
type WSResult struct {
	Message    *Message // Opcode is OpText/OpBinary, Payload reassembled
	Ping       []byte   // payload of an inbound PING, reply with a PONG
	Pong       []byte
	CloseCode  int
	CloseBody  []byte
	ShouldStop bool
}

// Feed appends newly-read bytes and extracts as many complete results as
// the buffered data contains.
func (e *WSEngine) Feed(data []byte) ([]WSResult, error) {
	e.inbuf = append(e.inbuf, data...)
	var out []WSResult
	for {
		frame, consumed, err := DecodeWSFrame(e.inbuf)
		if err != nil {
			out = append(out, WSResult{CloseCode: CloseProtocolError, ShouldStop: true})
			return out, err
		}
		if frame == nil {
			return out, nil
		}
		e.inbuf = e.inbuf[consumed:]

		res, stop, err := e.handleFrame(frame)
		if err != nil {
			return append(out, res), err
		}
		// A non-final data fragment completes nothing yet; its bytes are
		// reported with the reassembled message.
		if !stop && res.Message == nil &&
			(frame.Opcode == WSOpText || frame.Opcode == WSOpBinary || frame.Opcode == WSOpContinuation) {
			continue
		}
		out = append(out, res)
		if stop {
			return out, nil
		}
	}
}

func (e *WSEngine) handleFrame(f *WSFrame) (WSResult, bool, error) {
	switch f.Opcode {
	case WSOpPing:
		return WSResult{Ping: append([]byte{}, f.Payload...)}, false, nil
	case WSOpPong:
		return WSResult{Pong: append([]byte{}, f.Payload...)}, false, nil
	case WSOpClose:
		code := CloseNormal
		body := f.Payload
		if len(f.Payload) >= 2 {
			code = int(f.Payload[0])<<8 | int(f.Payload[1])
			body = f.Payload[2:]
		}
		return WSResult{CloseCode: code, CloseBody: body, ShouldStop: true}, true, nil
	case WSOpText, WSOpBinary:
		if e.assembling {
			return WSResult{CloseCode: CloseProtocolError, ShouldStop: true}, true,
				errProtocol("streamrt: new data frame while assembling fragmented message")
		}
		if f.Fin {
			if f.Opcode == WSOpText && !utf8.Valid(f.Payload) {
				return WSResult{CloseCode: CloseInvalidUTF8, ShouldStop: true}, true,
					errProtocol("streamrt: invalid UTF-8 in TEXT frame")
			}
			return WSResult{Message: &Message{Opcode: wsToInternalOp(f.Opcode), Payload: f.Payload}}, false, nil
		}
		e.assembling = true
		e.firstOp = f.Opcode
		e.assembly = append([]byte(nil), f.Payload...)
		return WSResult{}, false, nil
	case WSOpContinuation:
		if !e.assembling {
			return WSResult{CloseCode: CloseProtocolError, ShouldStop: true}, true,
				errProtocol("streamrt: CONTINUATION without a preceding data frame")
		}
		e.assembly = append(e.assembly, f.Payload...)
		if len(e.assembly) > e.maxMessageSize {
			e.assembling = false
			return WSResult{CloseCode: CloseTooLarge, ShouldStop: true}, true,
				errProtocol("streamrt: assembled message exceeds max size")
		}
		if !f.Fin {
			return WSResult{}, false, nil
		}
		e.assembling = false
		if e.firstOp == WSOpText && !utf8.Valid(e.assembly) {
			return WSResult{CloseCode: CloseInvalidUTF8, ShouldStop: true}, true,
				errProtocol("streamrt: invalid UTF-8 in reassembled TEXT message")
		}
		msg := &Message{Opcode: wsToInternalOp(e.firstOp), Payload: e.assembly}
		e.assembly = nil
		return WSResult{Message: msg}, false, nil
	default:
		return WSResult{CloseCode: CloseUnexpectedCond, ShouldStop: true}, true,
			errProtocol("streamrt: unknown websocket opcode")
	}
}

func wsToInternalOp(o WSOpcode) Opcode {
	if o == WSOpText {
		return OpText
	}
	return OpBinary
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

func errProtocol(msg string) error { return protocolError(msg) }
