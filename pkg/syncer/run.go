package syncer

import (
	"context"
	"time"
)

// backoffDuration returns the backoff duration for the nth consecutive
// failure. It doubles with each failure, capped at BackoffMax.
func (s *Syncer) backoffDuration(consecutiveErrors int) time.Duration {
	shift := consecutiveErrors - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 20 { // cap shift to prevent overflow: 2^20 > 1M
		shift = 20
	}
	d := s.cfg.BackoffBase * time.Duration(1<<uint(shift))
	if d > s.cfg.BackoffMax {
		d = s.cfg.BackoffMax
	}
	return d
}

// Run starts the periodic refresh loop. It blocks until ctx is cancelled.
// When cfg.Once is true it runs a single refresh and returns immediately.
//
// There is no mid-flight cancellation inside a zone's mutation sequence:
// cancelling ctx stops the pipeline between zones, and already-issued bulk
// calls complete without rollback.
func (s *Syncer) Run(ctx context.Context) error {
	if s.cfg.Once {
		return s.Refresh(ctx)
	}

	// Fires immediately for the first refresh, then resets to cfg.Interval
	// on success or a computed backoff on failure.
	nextTimer := time.NewTimer(0)
	defer nextTimer.Stop()

	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-nextTimer.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Error("refresh failed", "err", err)
				consecutiveErrors++
				b := s.backoffDuration(consecutiveErrors)
				s.log.Warn("backing off before next refresh",
					"backoff", b.String(), "consecutive_errors", consecutiveErrors)
				nextTimer.Reset(b)
			} else {
				consecutiveErrors = 0
				nextTimer.Reset(s.cfg.Interval)
			}
		}
	}
}
