package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAdmitsBurstWithoutWaiting(t *testing.T) {
	l := NewLimiter(2, 200*time.Millisecond)

	var sleeps []time.Duration
	now := time.Now()
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.Empty(t, sleeps)
}

func TestLimiterBlocksTheCallBeyondTheWindow(t *testing.T) {
	// 2 calls per 200ms: the third caller in the same instant must wait for
	// the window to admit one more token (100ms at this refill rate).
	l := NewLimiter(2, 200*time.Millisecond)

	var sleeps []time.Duration
	now := time.Now()
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}

	require.Len(t, sleeps, 1)
	assert.InDelta(t, float64(100*time.Millisecond), float64(sleeps[0]), float64(5*time.Millisecond))
}

func TestLimiterReleasesReservationOnCanceledWait(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))

	// Next admission is a minute away; cancel instead of waiting.
	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
