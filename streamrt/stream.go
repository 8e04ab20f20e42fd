package streamrt

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ThrottleThreshold is the default write-queue size (bytes) at or above which
// a stream enters StatusThrottling and further sends return ErrAgain
// until the queue drains back below it.
const ThrottleThreshold = 512 * 1024

// ErrAgain signals a would-block condition; callers retry on the next
// readable/writable event.
var ErrAgain = errors.New("streamrt: resource temporarily unavailable")

// pendingWrite is one queued byte buffer with progress tracking.
type pendingWrite struct {
	buf  []byte
	sent int
}

func (p *pendingWrite) remaining() []byte { return p.buf[p.sent:] }
func (p *pendingWrite) total() int        { return len(p.buf) }
func (p *pendingWrite) done() bool        { return p.sent >= len(p.buf) }

// RawIO abstracts the fd-level read/write calls a Stream drives; production
// code backs it with a raw socket/pipe fd, tests back it with an in-memory
// pipe pair.
type RawIO interface {
	Fd() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Stream is the single-threaded, non-blocking byte-stream abstraction:
// a read monitor and a write monitor are installed on the owning Loop,
// and writes that would block are queued rather than retried
// synchronously.
type Stream struct {
	log  *zap.Logger
	loop *Loop
	io   RawIO

	status       Status
	fatal        FatalReason
	writeQueue   []*pendingWrite
	queuedBytes  int
	throttleAt   int
	lastReadAt   time.Time
	livenessID   int64
	respTimeout  time.Duration // noresptimetoping
	closeTimeout time.Duration // noresptimetoclose
	pingLimiter  *rate.Limiter

	sink   EventSink
	coroID int64

	onReadable func([]byte)
	closed     bool
}

// StreamOption configures a Stream at construction time.
type StreamOption func(*Stream)

// WithThrottleThreshold overrides the default 512 KiB throttle threshold.
func WithThrottleThreshold(n int) StreamOption {
	return func(s *Stream) { s.throttleAt = n }
}

// WithLiveness sets the noresptimetoping/noresptimetoclose pair driving
// the PING/PONG liveness timer.
func WithLiveness(toPing, toClose time.Duration) StreamOption {
	return func(s *Stream) { s.respTimeout = toPing; s.closeTimeout = toClose }
}

// NewStream wraps io under loop, installing read/write monitors and the
// liveness timer. onReadable is invoked with freshly-read bytes whenever
// the fd becomes readable.
func NewStream(log *zap.Logger, loop *Loop, io RawIO, sink EventSink, coroID int64, onReadable func([]byte), opts ...StreamOption) (*Stream, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stream{
		log:          log,
		loop:         loop,
		io:           io,
		throttleAt:   ThrottleThreshold,
		lastReadAt:   time.Now(),
		respTimeout:  30 * time.Second,
		closeTimeout: 90 * time.Second,
		sink:         sink,
		coroID:       coroID,
		onReadable:   onReadable,
	}
	for _, o := range opts {
		o(s)
	}
	// pingLimiter paces outgoing liveness pings to at most one per
	// respTimeout even if the timer callback is ever invoked more often
	// than scheduled (e.g. a Loop timer-heap rearm racing the deadline).
	s.pingLimiter = rate.NewLimiter(rate.Every(s.respTimeout), 1)
	if err := forceNonblock(io.Fd()); err != nil {
		return nil, errors.Wrap(err, "streamrt: force O_NONBLOCK")
	}
	if err := loop.AddMonitor(io.Fd(), EventIn, s.onMonitor); err != nil {
		return nil, err
	}
	s.status.set(StatusReading)
	interval := s.respTimeout / 3
	if interval < time.Second {
		interval = time.Second
	}
	s.livenessID = loop.AddTimer(interval, s.checkLiveness)
	return s, nil
}

func forceNonblock(fd int) error {
	return syscall.SetNonblock(fd, true)
}

func (s *Stream) onMonitor(fd int, ready EventMask) {
	if ready.Has(EventHup) || ready.Has(EventErr) {
		s.postError(EventStreamHangup, errors.New("streamrt: peer hangup"))
		s.fail(ReasonIO)
		return
	}
	if ready.Has(EventIn) {
		s.handleReadable()
	}
	if ready.Has(EventOut) {
		s.drainQueue()
	}
}

func (s *Stream) handleReadable() {
	buf := make([]byte, 64*1024)
	n, err := s.io.Read(buf)
	if err != nil {
		if err == ErrAgain {
			return
		}
		s.postError(EventStreamError, err)
		s.fail(ReasonIO)
		return
	}
	if n == 0 {
		s.postError(EventStreamHangup, errors.New("streamrt: EOF"))
		s.fail(ReasonNone)
		return
	}
	s.lastReadAt = time.Now()
	if s.onReadable != nil {
		s.onReadable(buf[:n])
	}
	s.sink.Post(Event{Kind: EventStreamReadable, CoroID: s.coroID, Payload: n})
}

// Write attempts direct I/O first; residual bytes are queued for the OUT
// monitor to drain. Returns ErrAgain if the stream is throttling.
func (s *Stream) Write(p []byte) (int, error) {
	if s.status.Has(StatusClosing) {
		return 0, errors.New("streamrt: write on closing stream")
	}
	if s.status.Has(StatusThrottling) {
		return 0, ErrAgain
	}
	if len(s.writeQueue) == 0 {
		n, err := s.io.Write(p)
		if err != nil && err != ErrAgain {
			return 0, err
		}
		if n == len(p) {
			return n, nil
		}
		s.enqueue(p[n:])
		s.armWritable()
		return len(p), nil
	}
	s.enqueue(p)
	s.armWritable()
	return len(p), nil
}

func (s *Stream) enqueue(p []byte) {
	buf := append([]byte(nil), p...)
	s.writeQueue = append(s.writeQueue, &pendingWrite{buf: buf})
	s.queuedBytes += len(buf)
	if s.queuedBytes >= s.throttleAt {
		s.status.set(StatusThrottling)
	}
	s.status.set(StatusSending)
}

func (s *Stream) armWritable() {
	_ = s.loop.ModifyMonitor(s.io.Fd(), EventIn|EventOut)
}

func (s *Stream) drainQueue() {
	for len(s.writeQueue) > 0 {
		pw := s.writeQueue[0]
		n, err := s.io.Write(pw.remaining())
		if n > 0 {
			pw.sent += n
			s.queuedBytes -= n
		}
		if err != nil {
			if err == ErrAgain {
				break
			}
			s.postError(EventStreamError, err)
			s.fail(ReasonIO)
			return
		}
		if !pw.done() {
			break
		}
		s.writeQueue = s.writeQueue[1:]
	}
	if len(s.writeQueue) == 0 {
		s.status.clear(StatusSending)
		_ = s.loop.ModifyMonitor(s.io.Fd(), EventIn)
	}
	if s.queuedBytes < s.throttleAt {
		s.status.clear(StatusThrottling)
	}
}

func (s *Stream) checkLiveness(now time.Time) time.Duration {
	if s.status.Has(StatusClosing) {
		return 0
	}
	elapsed := now.Sub(s.lastReadAt)
	switch {
	case elapsed > s.closeTimeout:
		s.fail(ReasonLTNR)
		return 0
	case elapsed > s.respTimeout:
		if s.pingLimiter.Allow() {
			_, _ = s.Write(pingFrame())
		}
	}
	interval := s.respTimeout / 3
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// pingFrame encodes a zero-length PING frame with frame.go's encodeFrame.
func pingFrame() []byte {
	return encodeFrame(frameHeader{Opcode: OpPing}, nil)
}

func (s *Stream) postError(kind EventKind, err error) {
	s.sink.Post(Event{Kind: kind, CoroID: s.coroID, Err: err})
}

func (s *Stream) fail(reason FatalReason) {
	s.fatal = reason
	s.status.set(StatusClosing)
}

// Status reports the current bit-set and fatal reason.
func (s *Stream) Status() (Status, FatalReason) { return s.status, s.fatal }

// Close drains pending writes synchronously-best-effort and releases the
// stream's monitors and timer. Idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.writeQueue) > 0 {
		s.drainQueue()
	}
	s.status.set(StatusClosing)
	s.loop.CancelTimer(s.livenessID)
	_ = s.loop.RemoveMonitor(s.io.Fd())
	return s.io.Close()
}

// Fd returns the underlying descriptor.
func (s *Stream) Fd() int { return s.io.Fd() }
