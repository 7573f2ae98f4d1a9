// Package timer implements the logical, cancellable timers of spec §4.10 (C10).
// Every timer, on expiry, posts a callback onto the participant actor's goroutine
// via a channel-delivered closure rather than calling back directly, so every
// state mutation still happens on the actor (spec §5, §9 "mailboxes over locks").
package timer

import (
	"time"
)

// Tick is what a Service delivers to its owner on expiry: Run is invoked on the
// actor's own goroutine when the owner drains its channel.
type Tick struct {
	Run func()
}

// Handle lets the owner cancel a scheduled timer before it fires.
type Handle struct {
	timer *time.Timer
}

// Cancel stops the timer. A timer that already fired and whose Tick is sitting in
// the channel is left alone (spec §5: "a late expiry mail must check liveness of
// its target and no-op if stale" — that check belongs to the Tick.Run closure).
func (h *Handle) Cancel() {
	if h == nil || h.timer == nil {
		return
	}
	h.timer.Stop()
}

// Service multiplexes every timer owned by one participant actor onto a single
// output channel, mirroring the teacher's single-goroutine-per-concern style
// (responder's query handler goroutine) applied to scheduling instead of I/O.
type Service struct {
	out  chan Tick
	done chan struct{}
}

func NewService() *Service {
	return &Service{
		out:  make(chan Tick, 64),
		done: make(chan struct{}),
	}
}

// Out is the channel the actor selects on alongside its mailbox and the receiver.
func (s *Service) Out() <-chan Tick { return s.out }

// After schedules run to fire once after d, posted as a Tick on Out().
func (s *Service) After(d time.Duration, run func()) *Handle {
	h := &Handle{}
	h.timer = time.AfterFunc(d, func() {
		select {
		case s.out <- Tick{Run: run}:
		case <-s.done:
		}
	})
	return h
}

// Every schedules run to fire repeatedly every d until the returned handle is
// cancelled or the service is closed (used for heartbeat_period, SPDP announce).
func (s *Service) Every(d time.Duration, run func()) *Handle {
	h := &Handle{}
	var loop func()
	loop = func() {
		select {
		case s.out <- Tick{Run: run}:
		case <-s.done:
			return
		}
		h.timer = time.AfterFunc(d, loop)
	}
	h.timer = time.AfterFunc(d, loop)
	return h
}

// Close stops delivering further ticks; in-flight AfterFunc goroutines return
// promptly because their send is guarded by done.
func (s *Service) Close() {
	close(s.done)
}
