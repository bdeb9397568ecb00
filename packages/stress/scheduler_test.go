package stress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerWaitWithoutRate(t *testing.T) {
	s := NewScheduler(0, 1)

	start := time.Now()
	require.NoError(t, s.Wait(context.Background()))
	require.NoError(t, s.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSchedulerWaitPacesStarts(t *testing.T) {
	s := NewScheduler(50, 10) // one start every 20ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Wait(context.Background()))
	}
	// First start is immediate, the next two wait a tick each.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSchedulerWaitHonorsCancel(t *testing.T) {
	s := NewScheduler(0.001, 1) // effectively never

	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Wait(ctx)
	assert.Error(t, err)
}

func TestSchedulerAcquireRelease(t *testing.T) {
	s := NewScheduler(0, 2)

	require.NoError(t, s.Acquire(context.Background()))
	require.NoError(t, s.Acquire(context.Background()))

	// Pool is full, so the next acquire blocks until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(ctx), context.DeadlineExceeded)

	s.Release()
	require.NoError(t, s.Acquire(context.Background()))
}
