// Package variant implements the polymorphic, reference-counted value
// model described by the interpreter runtime: scalars, containers,
// the observer bus, the reverse-update edge graph and the move-heap
// protocol.
package variant

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrorKind enumerates the error taxonomy of the runtime (kinds, not
// identifiers). The core never panics across API boundaries: a failing
// operation returns an error carrying its kind (see KindOf). Failures
// are not recorded in the last-error cell read by LastError.
type ErrorKind int

const (
	ErrOK ErrorKind = iota
	ErrOutOfMemory
	ErrInvalidValue
	ErrWrongKind
	ErrOutOfRange
	ErrNotImplemented
	ErrNotSupported
	ErrDuplicated
	ErrNotFound
	ErrOverflow
	ErrDivideByZero
	ErrEntityGone
	ErrIO
	ErrBrokenPipe
	ErrConnAborted
	ErrTLS
	ErrProtocol
	ErrTooLong
	ErrTooLargeEntity
	ErrAccessDenied
	ErrTimeout
	ErrAgain
)

func (k ErrorKind) String() string {
	switch k {
	case ErrOK:
		return "ok"
	case ErrOutOfMemory:
		return "out-of-memory"
	case ErrInvalidValue:
		return "invalid-value"
	case ErrWrongKind:
		return "wrong-kind"
	case ErrOutOfRange:
		return "out-of-range"
	case ErrNotImplemented:
		return "not-implemented"
	case ErrNotSupported:
		return "not-supported"
	case ErrDuplicated:
		return "duplicated"
	case ErrNotFound:
		return "not-found"
	case ErrOverflow:
		return "overflow"
	case ErrDivideByZero:
		return "divide-by-zero"
	case ErrEntityGone:
		return "entity-gone"
	case ErrIO:
		return "io"
	case ErrBrokenPipe:
		return "broken-pipe"
	case ErrConnAborted:
		return "connection-aborted"
	case ErrTLS:
		return "tls"
	case ErrProtocol:
		return "protocol"
	case ErrTooLong:
		return "too-long"
	case ErrTooLargeEntity:
		return "too-large-entity"
	case ErrAccessDenied:
		return "access-denied"
	case ErrTimeout:
		return "timeout"
	case ErrAgain:
		return "again"
	default:
		return "unknown"
	}
}

// Error wraps an ErrorKind with context, analogous to a thread-local
// "last error" cell, but surfaced as a normal Go error value via
// github.com/pkg/errors so callers get a stack at the point the kind
// was first attached.
type Error struct {
	Kind ErrorKind
	msg  string
	wrap error
}

func (e *Error) Error() string {
	if e.wrap != nil {
		return e.Kind.String() + ": " + e.msg + ": " + e.wrap.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error { return e.wrap }

// newErr builds an *Error and attaches a stack trace via pkg/errors so
// that the error carries provenance when it escapes an API boundary.
func newErr(kind ErrorKind, msg string) error {
	return errors.WithStack(&Error{Kind: kind, msg: msg})
}

func wrapErr(kind ErrorKind, msg string, cause error) error {
	return errors.WithStack(&Error{Kind: kind, msg: msg, wrap: cause})
}

// KindOf extracts the ErrorKind carried by err, or ErrOK if err is nil,
// or ErrInvalidValue if err does not carry a *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrOK
	}
	var target *Error
	for {
		if e, ok := err.(*Error); ok {
			target = e
			break
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}
	if target == nil {
		return ErrInvalidValue
	}
	return target.Kind
}

// lastError is the per-goroutine analogue of a thread-local last-error
// propagation cell. Real coroutines in this runtime are modeled
// one-per-goroutine (the variant API is never
// called concurrently from two goroutines against the same heap), so a
// sync.Map keyed by goroutine-affine token is sufficient; we key by a
// pointer the caller owns (normally the Heap) to stay allocation-free.
var lastErrors sync.Map // map[*Heap]error

func setLastError(h *Heap, err error) {
	if h == nil {
		return
	}
	if err == nil {
		lastErrors.Delete(h)
		return
	}
	lastErrors.Store(h, err)
}

// LastError returns the error last stored for h by setLastError. No
// operation of this package stores one, so it returns nil unless
// setLastError has been called for h.
func LastError(h *Heap) error {
	v, ok := lastErrors.Load(h)
	if !ok {
		return nil
	}
	return v.(error)
}
