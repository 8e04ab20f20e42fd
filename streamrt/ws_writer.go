package streamrt

import (
	"bytes"

	"github.com/klauspost/compress/flate"
)

// deflateTrailer is the RFC 7692 empty-final-block marker a
// permessage-deflate sender strips from the end of every compressed
// message before framing it.
var deflateTrailer = []byte{0x00, 0x00, 0xff, 0xff}

// WSWriter sends RFC 6455 data frames over a RawIO, with an optional
// permessage-deflate-shaped payload codec for large TEXT/BIN frames.
// Compression defaults to off: enabling it only changes what this
// writer does with its own outgoing frames, it does not perform or
// assume any extension negotiation with the peer.
type WSWriter struct {
	io     RawIO
	masked bool

	compress    bool
	compressMin int
}

// WSWriterOption configures a WSWriter.
type WSWriterOption func(*WSWriter)

// WithPermessageDeflate turns on the flate-backed payload codec for data
// frames at or above minSize bytes (0 selects a 1 KiB floor).
func WithPermessageDeflate(minSize int) WSWriterOption {
	return func(w *WSWriter) {
		w.compress = true
		if minSize > 0 {
			w.compressMin = minSize
		}
	}
}

// NewWSWriter wraps io; masked selects client framing (payload masked
// with a fresh per-frame key), matching a server writer's unmasked frames
// when false.
func NewWSWriter(io RawIO, masked bool, opts ...WSWriterOption) *WSWriter {
	w := &WSWriter{io: io, masked: masked, compressMin: 1024}
	for _, o := range opts {
		o(w)
	}
	return w
}

// WriteMessage sends a single, unfragmented TEXT/BINARY frame. When
// compression is enabled and payload is at least compressMin bytes, it is
// deflate-compressed and the frame's RSV1 bit is set; frames that don't
// shrink are sent uncompressed instead.
func (w *WSWriter) WriteMessage(opcode WSOpcode, payload []byte) (int, error) {
	rsv1 := false
	if w.compress && len(payload) >= w.compressMin {
		if compressed, err := deflateCompress(payload); err == nil && len(compressed) < len(payload) {
			payload = compressed
			rsv1 = true
		}
	}
	var maskKey *[4]byte
	if w.masked {
		k, err := NewMaskKey()
		if err != nil {
			return 0, err
		}
		maskKey = &k
	}
	frame := encodeWSFrame(opcode, true, rsv1, payload, maskKey)
	return w.io.Write(frame)
}

// deflateCompress runs payload through klauspost/compress/flate at
// BestSpeed and trims the RFC 7692 trailer permessage-deflate senders
// are required to strip before framing the result.
func deflateCompress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), deflateTrailer), nil
}
