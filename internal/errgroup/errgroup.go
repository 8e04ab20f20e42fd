// Package errgroup provides a small structured-concurrency helper for
// goroutines that must all succeed or none count as having run: the
// first error cancels the shared context and Wait returns it, mirroring
// the pattern production worker pools are commonly built around.
package errgroup

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Group runs a set of functions and collects the first error.
type Group struct {
	cancel context.CancelFunc

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// WithContext returns a Group and a derived Context that is canceled the
// first time a function passed to Go returns a non-nil error, or the
// first time Wait returns, whichever occurs first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{cancel: cancel}, ctx
}

// Go runs fn in a new goroutine and tracks its completion.
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil {
			g.errOnce.Do(func() {
				g.err = err
				if g.cancel != nil {
					g.cancel()
				}
			})
		}
	}()
}

// Wait blocks until every Go'd function returns, then returns the first
// non-nil error (if any).
func (g *Group) Wait() error {
	g.wg.Wait()
	if g.cancel != nil {
		g.cancel()
	}
	return g.err
}

// WrapCritical marks an error as non-recoverable for callers that
// distinguish fatal worker failures from ordinary AGAIN-style retries.
func WrapCritical(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
