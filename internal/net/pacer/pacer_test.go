package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalEnforcesMinimumGap(t *testing.T) {
	p := NewInterval(20*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	elapsed := time.Since(start)

	// Two waits each carry at least the jitter floor; the second also owes
	// the remainder of the minimum interval.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestIntervalCancellation(t *testing.T) {
	p := NewInterval(500*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestBudgetAllowsUpToLimit(t *testing.T) {
	p := NewBudget(5)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 5, p.count)
}

func TestBudgetResetsOnNewWindow(t *testing.T) {
	p := NewBudget(2)
	p.window = 30 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, 1, p.count)
}

func TestBudgetCancellationWhileSleeping(t *testing.T) {
	p := NewBudget(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Wait(ctx))
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
