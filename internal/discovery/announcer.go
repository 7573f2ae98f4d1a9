package discovery

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Announcer paces SPDP re-announcement to roughly lease/3 (spec §4.7), using
// golang.org/x/time/rate the way contour/keda rate-limit reconcile loops,
// instead of a bare time.Ticker: a burst of 1 means a manually-triggered
// AnnounceParticipant can't be starved by the periodic tick, but it also can't
// fire faster than the configured interval.
type Announcer struct {
	limiter *rate.Limiter
	publish func()
}

// NewAnnouncer builds an Announcer that calls publish no more often than once
// per interval (interval is typically leaseDuration/3).
func NewAnnouncer(interval time.Duration, publish func()) *Announcer {
	return &Announcer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		publish: publish,
	}
}

// Run blocks, calling publish once immediately and then every time the
// limiter admits a tick, until ctx is done. Intended to be run as one of the
// extra goroutines passed to actor.Participant.RunSupervised.
func (a *Announcer) Run(ctx context.Context) error {
	// The immediate publish spends the limiter's initial token, so the next
	// one waits a full interval.
	a.limiter.Allow()
	a.publish()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if a.limiter.Allow() {
				a.publish()
			}
		}
	}
}
