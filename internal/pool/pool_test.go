package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/config/crawler"
	"github.com/jonesrussell/mapthenet/internal/crawlcontext"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()

	cc := &crawlcontext.Context{
		Config: &crawler.Config{
			ItemTimeout:    300 * time.Second,
			StuckThreshold: 15 * time.Minute,
		},
	}

	return New(cc, 2, 5)
}

func TestNew_ClampsWorkersAndBatchSize(t *testing.T) {
	t.Parallel()

	cc := &crawlcontext.Context{Config: &crawler.Config{}}
	p := New(cc, 0, 0)

	require.Equal(t, 1, p.Workers)
	require.Equal(t, 1, p.BatchSize)
}

func TestBudgetExhausted(t *testing.T) {
	t.Parallel()

	p := newTestPool(t)
	require.False(t, p.budgetExhausted(), "unbounded by default")

	p.MaxItems = 2
	require.False(t, p.budgetExhausted())

	p.itemsRun = 2
	require.True(t, p.budgetExhausted())
}

func TestConsecutiveEmptyLeases_ResetsIndependentlyPerWorker(t *testing.T) {
	t.Parallel()

	p := newTestPool(t)

	require.Equal(t, 1, p.consecutiveEmptyLeases(0))
	require.Equal(t, 2, p.consecutiveEmptyLeases(0))
	require.Equal(t, 1, p.consecutiveEmptyLeases(1), "worker 1's counter is independent of worker 0's")

	p.resetEmptyLeases(0)
	require.Equal(t, 1, p.consecutiveEmptyLeases(0), "reset worker starts counting over")
}

func TestNonZeroOr(t *testing.T) {
	t.Parallel()

	require.Equal(t, 5*time.Second, nonZeroOr(5*time.Second, time.Minute))
	require.Equal(t, time.Minute, nonZeroOr(0, time.Minute))
	require.Equal(t, time.Minute, nonZeroOr(-1, time.Minute))
}
