// Package pool runs N workers that cooperatively drain the shared
// discovery queue, each leasing its own batch, processing entries
// sequentially under a per-item deadline, and backing off to sleep
// when the queue runs dry. It owns startup and shutdown stuck-lease
// sweeps and the three-tier signal escalation that lets an operator
// request a cooperative drain and, failing that, a forced exit.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/mapthenet/internal/crawlcontext"
	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/orchestrator"
)

const (
	// emptyQueuePollInterval bounds how long a worker waits before
	// re-checking the queue after an empty lease, in 1s cancellation
	// checks so shutdown is never blocked more than a second.
	emptyQueuePollInterval = 30 * time.Second
	pollTick               = 1 * time.Second

	defaultStuckThreshold = 15 * time.Minute

	// stopOnEmptyPollInterval and stopOnEmptyRetries bound how long a
	// non-continuous run waits out transient empty leases (another
	// worker's in-flight discoveries) before concluding the queue is
	// genuinely drained.
	stopOnEmptyPollInterval = 2 * time.Second
	stopOnEmptyRetries      = 3
)

// Stats summarizes one pool run, reported back to the CLI command.
type Stats struct {
	Leased    int
	Processed int
	Failed    int
	Skipped   int
}

// Pool owns a fixed number of workers over one shared crawl context.
type Pool struct {
	cc    *crawlcontext.Context
	Orch  *orchestrator.Orchestrator
	mu    sync.Mutex
	stats Stats

	Workers        int
	BatchSize      int
	ItemTimeout    time.Duration
	StuckThreshold time.Duration

	// MaxItems caps the total number of entries processed across every
	// worker before Run returns, 0 meaning unbounded (continuous mode).
	MaxItems int
	itemsRun int

	// StopOnEmpty makes a worker exit, rather than sleep indefinitely,
	// once the queue has looked empty for stopOnEmptyRetries polls.
	StopOnEmpty bool
	emptyLeases map[int]int
}

// New builds a Pool of workers over cc, each leasing up to batchSize
// entries at a time.
func New(cc *crawlcontext.Context, workers, batchSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	return &Pool{
		cc:             cc,
		Orch:           orchestrator.New(cc),
		Workers:        workers,
		BatchSize:      batchSize,
		ItemTimeout:    cc.Config.ItemTimeout,
		StuckThreshold: nonZeroOr(cc.Config.StuckThreshold, defaultStuckThreshold),
		emptyLeases:    make(map[int]int),
	}
}

func (p *Pool) consecutiveEmptyLeases(workerID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.emptyLeases[workerID]++

	return p.emptyLeases[workerID]
}

func (p *Pool) resetEmptyLeases(workerID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.emptyLeases[workerID] = 0
}

// Run sweeps stuck leases, launches the worker goroutines, and blocks
// until every worker has exited (on cancellation of ctx, once MaxItems
// is reached, or, with StopOnEmpty, once the queue stays empty), each
// finishing its current item (or that item's own timeout) first, then
// sweeps again so the next run doesn't inherit orphaned leases.
func (p *Pool) Run(ctx context.Context) (Stats, error) {
	if recovered, err := p.cc.Queue.SweepStuck(ctx, p.StuckThreshold); err != nil {
		p.cc.Logger.Warn("startup stuck sweep failed", "error", err)
	} else if recovered > 0 {
		p.cc.Logger.Info("recovered stuck leases at startup", "count", recovered)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	wg.Wait()

	if recovered, err := p.cc.Queue.SweepStuck(context.Background(), p.StuckThreshold); err != nil {
		p.cc.Logger.Warn("shutdown stuck sweep failed", "error", err)
	} else if recovered > 0 {
		p.cc.Logger.Info("recovered stuck leases at shutdown", "count", recovered)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats, nil
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		if p.budgetExhausted() {
			return
		}

		entries, err := p.cc.Queue.LeaseBatch(ctx, p.BatchSize, p.cc.AgentName)
		if err != nil {
			p.cc.Logger.Warn("lease batch failed", "worker", id, "error", err)

			if sleepErr := p.sleepOrDone(ctx, emptyQueuePollInterval); sleepErr != nil {
				return
			}

			continue
		}

		if len(entries) == 0 {
			if p.StopOnEmpty {
				if p.consecutiveEmptyLeases(id) >= stopOnEmptyRetries {
					return
				}

				if sleepErr := p.sleepOrDone(ctx, stopOnEmptyPollInterval); sleepErr != nil {
					return
				}

				continue
			}

			if sleepErr := p.sleepOrDone(ctx, emptyQueuePollInterval); sleepErr != nil {
				return
			}

			continue
		}

		p.resetEmptyLeases(id)

		p.mu.Lock()
		p.stats.Leased += len(entries)
		p.mu.Unlock()

		for _, entry := range entries {
			p.processOne(ctx, id, entry)

			if p.budgetExhausted() {
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (p *Pool) processOne(ctx context.Context, workerID int, entry *domain.QueueEntry) {
	itemCtx, cancel := context.WithTimeout(ctx, p.ItemTimeout)
	defer cancel()

	err := p.Orch.Process(itemCtx, entry)

	p.mu.Lock()
	p.itemsRun++
	switch {
	case err != nil:
		p.stats.Failed++
	case entry.Status == domain.QueueStatusSkipped:
		p.stats.Skipped++
	default:
		p.stats.Processed++
	}
	p.mu.Unlock()

	if err != nil {
		p.cc.Logger.Warn("process entry failed", "worker", workerID, "url", entry.URL, "error", err)

		if interruptErr := p.cc.Queue.Interrupt(context.Background(), entry.ID, "worker error, requeued"); interruptErr != nil {
			p.cc.Logger.Warn("interrupt after failure failed", "worker", workerID, "url", entry.URL, "error", interruptErr)
		}
	}
}

func (p *Pool) budgetExhausted() bool {
	if p.MaxItems <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.itemsRun >= p.MaxItems
}

// sleepOrDone sleeps in 1s ticks up to d, returning early with ctx's
// error if ctx is canceled so a drain request is never delayed more
// than a second.
func (p *Pool) sleepOrDone(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)

	for time.Now().Before(deadline) {
		timer := time.NewTimer(pollTick)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

func nonZeroOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
