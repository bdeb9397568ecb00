package stress

import (
	"context"

	"golang.org/x/time/rate"
)

// Scheduler paces session starts in rate mode and bounds concurrency in
// both modes. The limiter spaces out session starts; the semaphore caps
// how many sessions run at once so a slow application cannot pile up
// unbounded goroutines.
type Scheduler struct {
	limiter *rate.Limiter
	sem     chan struct{}
}

// NewScheduler creates a scheduler for the given sessions-per-second
// rate and concurrency cap. A rate of zero disables pacing.
func NewScheduler(sessionsPerSec float64, maxConcurrent int) *Scheduler {
	s := &Scheduler{
		sem: make(chan struct{}, maxConcurrent),
	}
	if sessionsPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(sessionsPerSec), 1)
	}
	return s
}

// Wait blocks until the next session may start per the configured rate.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Acquire reserves a concurrency slot, blocking until one is free or
// the context is done.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a concurrency slot.
func (s *Scheduler) Release() {
	<-s.sem
}
