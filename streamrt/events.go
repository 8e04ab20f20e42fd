package streamrt

// EventKind names the events a Stream or WSEngine posts to its bound
// coroutine.
type EventKind string

const (
	EventStreamReadable EventKind = "stream:readable"
	EventStreamWritable EventKind = "stream:writable"
	EventStreamHangup   EventKind = "stream:hangup"
	EventStreamError    EventKind = "stream:error"

	EventMessageMessage EventKind = "message:message"
	EventMessageError   EventKind = "message:error"
	EventMessageClose   EventKind = "message:close"

	EventWSHandshake EventKind = "websocket:handshake"
	EventWSMessage   EventKind = "websocket:message"
	EventWSError     EventKind = "websocket:error"
	EventWSClose     EventKind = "websocket:close"
)

// Event is the envelope posted to a coroutine's FIFO inbox.
type Event struct {
	Kind    EventKind
	CoroID  int64
	Payload any
	Err     error
}

// EventSink receives events in the order they are posted. Implementations
// must preserve FIFO order per target coroutine.
type EventSink interface {
	Post(ev Event)
}

// ChanSink is an EventSink backed by a buffered channel, one per
// coroutine id, used by tests and the CLI's single-coroutine harness.
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a sink with the given buffer capacity.
func NewChanSink(buf int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buf)}
}

func (s *ChanSink) Post(ev Event) { s.ch <- ev }

// Events exposes the underlying channel for draining in tests.
func (s *ChanSink) Events() <-chan Event { return s.ch }
