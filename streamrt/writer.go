package streamrt

// MessageWriter fragments and sends whole messages over a Stream,
// splitting payloads larger than the configured max frame payload and
// queuing each resulting frame through the stream's write
// queue/throttle machinery.
type MessageWriter struct {
	stream *Stream
	limits FrameLimits
}

// NewMessageWriter binds a writer to stream with the given limits (zero
// values fall back to the package defaults).
func NewMessageWriter(stream *Stream, limits FrameLimits) *MessageWriter {
	return &MessageWriter{stream: stream, limits: limits.normalize()}
}

// WriteMessage sends payload as opcode, transparently fragmenting across
// multiple frames when it exceeds the max frame payload. Returns the
// total bytes handed to the stream (header bytes included) or the first
// write error/ErrAgain encountered.
func (w *MessageWriter) WriteMessage(opcode Opcode, payload []byte) (int, error) {
	frames := WriteMessage(opcode, payload, w.limits)
	total := 0
	for _, f := range frames {
		n, err := w.stream.Write(f)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WritePing/WritePong send zero-length PING/PONG control frames of the
// framed message protocol.
func (w *MessageWriter) WritePing() (int, error) { return w.stream.Write(encodeFrame(frameHeader{Opcode: OpPing}, nil)) }
func (w *MessageWriter) WritePong() (int, error) { return w.stream.Write(encodeFrame(frameHeader{Opcode: OpPong}, nil)) }

// WriteClose sends a CLOSE control frame carrying an optional reason.
func (w *MessageWriter) WriteClose(reason []byte) (int, error) {
	return w.stream.Write(encodeFrame(frameHeader{Opcode: OpClose}, reason))
}
