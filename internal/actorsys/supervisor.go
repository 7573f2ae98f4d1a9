// Package actorsys supervises the background goroutines a participant actor
// depends on (its own mailbox loop, the SPDP announce loop) so that any one of
// them failing tears down the rest instead of leaving a half-running
// participant, using golang.org/x/sync/errgroup the way keda's controller
// runtime supervises its worker goroutines.
package actorsys

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Supervisor runs a fixed set of goroutines under one context: the first to
// return a non-nil error cancels ctx for the rest, and Wait reports that first
// error. A goroutine that returns nil does not cancel the others.
type Supervisor struct {
	g   *errgroup.Group
	ctx context.Context
}

// New derives a cancellable context from parent and returns a Supervisor
// bound to it. Every supervised function should return promptly once ctx.Done()
// fires.
func New(parent context.Context) *Supervisor {
	g, ctx := errgroup.WithContext(parent)
	return &Supervisor{g: g, ctx: ctx}
}

// Context is the context supervised goroutines should select on.
func (s *Supervisor) Context() context.Context { return s.ctx }

// Go schedules fn to run under the group.
func (s *Supervisor) Go(fn func() error) {
	s.g.Go(fn)
}

// Wait blocks until every goroutine has returned, yielding the first non-nil
// error (if any).
func (s *Supervisor) Wait() error {
	return s.g.Wait()
}
