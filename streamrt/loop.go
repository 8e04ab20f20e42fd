package streamrt

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// EventMask is the union of readiness conditions a monitor subscribes
// to: IN, OUT, HUP, ERR, NVAL.
type EventMask uint32

const (
	EventIn EventMask = 1 << iota
	EventOut
	EventHup
	EventErr
	EventNval
)

func maskToEpoll(m EventMask) uint32 {
	var e uint32
	if m&EventIn != 0 {
		e |= unix.EPOLLIN
	}
	if m&EventOut != 0 {
		e |= unix.EPOLLOUT
	}
	if m&EventHup != 0 {
		e |= unix.EPOLLHUP
	}
	if m&EventErr != 0 {
		e |= unix.EPOLLERR
	}
	return e
}

func epollToMask(e uint32) EventMask {
	var m EventMask
	if e&unix.EPOLLIN != 0 {
		m |= EventIn
	}
	if e&unix.EPOLLOUT != 0 {
		m |= EventOut
	}
	if e&unix.EPOLLHUP != 0 {
		m |= EventHup
	}
	if e&unix.EPOLLERR != 0 {
		m |= EventErr
	}
	return m
}

// MonitorHandler is invoked by the loop when fd becomes ready for any of
// the bits in ready.
type MonitorHandler func(fd int, ready EventMask)

type monitor struct {
	fd      int
	mask    EventMask
	handler MonitorHandler
}

// TimerHandler is invoked when a timer fires; returning a positive
// duration reschedules it (periodic), zero or negative cancels it.
type TimerHandler func(now time.Time) time.Duration

type timer struct {
	id      int64
	next    time.Time
	handler TimerHandler
}

// Loop is the single-threaded cooperative run-loop: all stream
// callbacks execute on whichever goroutine calls Run/RunOnce (the
// caller is expected to dedicate one goroutine to it, a single thread
// per instance rather than one goroutine per connection). It
// multiplexes fd readiness via epoll (golang.org/x/sys/unix) and a
// sorted timer list.
type Loop struct {
	log *zap.Logger

	epfd     int
	monitors map[int]*monitor

	timers   []*timer
	timerSeq int64

	closed bool
}

// NewLoop creates an epoll-backed run-loop. Only supported where
// golang.org/x/sys/unix's epoll family is available (linux).
func NewLoop(log *zap.Logger) (*Loop, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: epoll_create1")
	}
	return &Loop{
		log:      log,
		epfd:     fd,
		monitors: make(map[int]*monitor),
	}, nil
}

// Close releases the loop's epoll fd. Idempotent.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.epfd)
}

// AddMonitor installs or replaces fd's subscribed event mask atomically
// with respect to the loop.
func (l *Loop) AddMonitor(fd int, mask EventMask, handler MonitorHandler) error {
	if _, exists := l.monitors[fd]; exists {
		return l.ModifyMonitor(fd, mask)
	}
	ev := unix.EpollEvent{Events: maskToEpoll(mask) | unix.EPOLLHUP | unix.EPOLLERR, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrap(err, "streamrt: epoll_ctl add")
	}
	l.monitors[fd] = &monitor{fd: fd, mask: mask, handler: handler}
	return nil
}

// ModifyMonitor replaces fd's mask.
func (l *Loop) ModifyMonitor(fd int, mask EventMask) error {
	m, ok := l.monitors[fd]
	if !ok {
		return errors.Errorf("streamrt: no monitor for fd %d", fd)
	}
	ev := unix.EpollEvent{Events: maskToEpoll(mask) | unix.EPOLLHUP | unix.EPOLLERR, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.Wrap(err, "streamrt: epoll_ctl mod")
	}
	m.mask = mask
	return nil
}

// RemoveMonitor deinstalls fd's monitor.
func (l *Loop) RemoveMonitor(fd int) error {
	if _, ok := l.monitors[fd]; !ok {
		return nil
	}
	delete(l.monitors, fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrap(err, "streamrt: epoll_ctl del")
	}
	return nil
}

// AddTimer schedules handler to run after d elapses; the handler's own
// return value reschedules it (periodic) or cancels it. Returns an id
// usable with CancelTimer.
func (l *Loop) AddTimer(d time.Duration, handler TimerHandler) int64 {
	l.timerSeq++
	t := &timer{id: l.timerSeq, next: time.Now().Add(d), handler: handler}
	l.timers = append(l.timers, t)
	l.sortTimers()
	return t.id
}

func (l *Loop) sortTimers() {
	sort.Slice(l.timers, func(i, j int) bool { return l.timers[i].next.Before(l.timers[j].next) })
}

// CancelTimer removes a pending timer by id.
func (l *Loop) CancelTimer(id int64) {
	for i, t := range l.timers {
		if t.id == id {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}

// RunOnce services one batch of ready fds (or the next timer deadline,
// whichever is sooner), then returns. Callers drive the loop with
// `for { loop.RunOnce() }` on a dedicated goroutine.
func (l *Loop) RunOnce() error {
	timeout := -1
	now := time.Now()
	if len(l.timers) > 0 {
		d := l.timers[0].next.Sub(now)
		if d < 0 {
			d = 0
		}
		timeout = int(d.Milliseconds())
	}

	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(l.epfd, events, timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return errors.Wrap(err, "streamrt: epoll_wait")
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		m, ok := l.monitors[int(ev.Fd)]
		if !ok {
			continue
		}
		m.handler(m.fd, epollToMask(ev.Events))
	}

	l.fireDueTimers(time.Now())
	return nil
}

func (l *Loop) fireDueTimers(now time.Time) {
	for len(l.timers) > 0 && !l.timers[0].next.After(now) {
		t := l.timers[0]
		l.timers = l.timers[1:]
		d := t.handler(now)
		if d > 0 {
			t.next = now.Add(d)
			l.timers = append(l.timers, t)
			l.sortTimers()
		}
	}
}
