// Package queuestore implements the shared work queue (discovery_queue)
// with atomic lease semantics, stuck-lease recovery, and dedup by
// canonical URL. It is the sole owner of QueueEntry lease state.
package queuestore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/mapthenet/internal/canonical"
	"github.com/jonesrussell/mapthenet/internal/domain"
)

const (
	maxLeaseRetries  = 3
	leaseRetryBase   = 100 * time.Millisecond
	selectColumns    = `id, url, domain_name, source_domain_id, priority, depth, status,
		discovered_at, processed_at, last_error, agent, created_at, updated_at`
)

// Store is the Postgres-backed implementation of the Queue Store (C1).
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnqueueParams describes a candidate URL to add to the queue.
type EnqueueParams struct {
	URL            string
	DomainName     string
	SourceDomainID *string
	Depth          int
	Priority       int
}

// Enqueue idempotently upserts a URL keyed on its canonical form. On
// conflict, priority is raised to the max of old and new, depth is
// lowered to the min, and status is left untouched.
func (s *Store) Enqueue(ctx context.Context, p EnqueueParams) error {
	canonURL, err := canonical.NormalizeURL(p.URL)
	if err != nil {
		return fmt.Errorf("queuestore: enqueue: %w", err)
	}

	query := `
		INSERT INTO discovery_queue (url, domain_name, source_domain_id, priority, depth, status, discovered_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
		ON CONFLICT (url) DO UPDATE SET
			priority = GREATEST(discovery_queue.priority, EXCLUDED.priority),
			depth = LEAST(discovery_queue.depth, EXCLUDED.depth),
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query, canonURL, p.DomainName, p.SourceDomainID, p.Priority, p.Depth)
	if err != nil {
		return fmt.Errorf("queuestore: enqueue: %w", err)
	}

	return nil
}

// LeaseBatch atomically selects up to n pending entries, ordered by
// priority then discovery time, and transitions them to processing.
// On lock contention or a transient error it retries up to
// maxLeaseRetries times with exponential backoff, returning an empty
// slice rather than blocking indefinitely once retries are exhausted.
func (s *Store) LeaseBatch(ctx context.Context, n int, agent string) ([]*domain.QueueEntry, error) {
	var entries []*domain.QueueEntry

	var lastErr error
	for attempt := 0; attempt <= maxLeaseRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := sleepCancelable(ctx, leaseRetryBase*time.Duration(math.Pow(2, float64(attempt-1)))); sleepErr != nil {
				return nil, sleepErr
			}
		}

		leased, err := s.leaseBatchOnce(ctx, n, agent)
		if err == nil {
			return leased, nil
		}

		lastErr = err
	}

	if lastErr != nil {
		return entries, nil //nolint:nilerr // retries exhausted: return empty, never block indefinitely
	}

	return entries, nil
}

func (s *Store) leaseBatchOnce(ctx context.Context, n int, agent string) ([]*domain.QueueEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queuestore: begin lease tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	ids, err := selectLeasable(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	entries, err := markProcessing(ctx, tx, ids, agent)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queuestore: commit lease tx: %w", err)
	}

	return entries, nil
}

func selectLeasable(ctx context.Context, tx *sqlx.Tx, n int) ([]string, error) {
	query := `
		SELECT id FROM discovery_queue
		WHERE status = 'pending'
		ORDER BY priority DESC, discovered_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	var ids []string
	if err := tx.SelectContext(ctx, &ids, query, n); err != nil {
		return nil, fmt.Errorf("queuestore: select leasable: %w", err)
	}

	return ids, nil
}

func markProcessing(ctx context.Context, tx *sqlx.Tx, ids []string, agent string) ([]*domain.QueueEntry, error) {
	query := `
		UPDATE discovery_queue
		SET status = 'processing', processed_at = NOW(), agent = $2, updated_at = NOW()
		WHERE id = ANY($1)
		RETURNING ` + selectColumns

	var entries []*domain.QueueEntry
	if err := tx.SelectContext(ctx, &entries, query, pq.Array(ids), agent); err != nil {
		return nil, fmt.Errorf("queuestore: mark processing: %w", err)
	}

	return entries, nil
}

// Complete transitions id to completed or failed. Unless the row is
// currently processing it changes nothing and returns an error.
func (s *Store) Complete(ctx context.Context, id string, ok bool, errMsg *string) error {
	status := domain.QueueStatusCompleted
	if !ok {
		status = domain.QueueStatusFailed
	}

	query := `
		UPDATE discovery_queue
		SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'processing'
	`

	return s.execRequireRows(ctx, query, status, errMsg, id)
}

// Skip transitions id to skipped, distinct from a failure, used for
// policy rejections (max depth, domain cap, already-queued).
func (s *Store) Skip(ctx context.Context, id, reason string) error {
	query := `
		UPDATE discovery_queue
		SET status = 'skipped', last_error = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'processing'
	`

	return s.execRequireRows(ctx, query, reason, id)
}

// Interrupt returns id to pending, clearing its lease. Used when a
// worker shuts down mid-item.
func (s *Store) Interrupt(ctx context.Context, id, reason string) error {
	query := `
		UPDATE discovery_queue
		SET status = 'pending', processed_at = NULL, last_error = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'processing'
	`

	return s.execRequireRows(ctx, query, reason, id)
}

// SweepStuck returns every processing row older than threshold to
// pending, releasing leases abandoned by crashed workers, and reports
// how many rows it recovered.
func (s *Store) SweepStuck(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
		UPDATE discovery_queue
		SET status = 'pending', processed_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND processed_at < NOW() - $1::interval
	`

	result, err := s.db.ExecContext(ctx, query, threshold.String())
	if err != nil {
		return 0, fmt.Errorf("queuestore: sweep stuck: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queuestore: sweep stuck rows affected: %w", err)
	}

	return int(n), nil
}

// IsActivelyQueued reports whether some entry for url is pending or
// processing, optionally excluding one entry id.
func (s *Store) IsActivelyQueued(ctx context.Context, rawURL string, excludeID *string) (bool, error) {
	canonURL, err := canonical.NormalizeURL(rawURL)
	if err != nil {
		return false, fmt.Errorf("queuestore: is actively queued: %w", err)
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM discovery_queue
			WHERE url = $1 AND status IN ('pending', 'processing') AND ($2::text IS NULL OR id != $2)
		)
	`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, canonURL, excludeID); err != nil {
		return false, fmt.Errorf("queuestore: is actively queued: %w", err)
	}

	return exists, nil
}

// CountStuck reports how many processing rows are older than threshold
// without mutating them, used by cleanup-stuck's dry-run and
// stats-only modes.
func (s *Store) CountStuck(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM discovery_queue
		WHERE status = 'processing' AND processed_at < NOW() - $1::interval
	`

	var count int
	if err := s.db.GetContext(ctx, &count, query, threshold.String()); err != nil {
		return 0, fmt.Errorf("queuestore: count stuck: %w", err)
	}

	return count, nil
}

// Wipe truncates the entire discovery queue.
func (s *Store) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE discovery_queue`); err != nil {
		return fmt.Errorf("queuestore: wipe: %w", err)
	}

	return nil
}

// Stats returns the count of entries per status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM discovery_queue GROUP BY status`

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queuestore: stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("queuestore: stats scan: %w", err)
		}
		stats[status] = count
	}

	return stats, rows.Err()
}

func (s *Store) execRequireRows(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("queuestore: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("queuestore: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("queuestore: entry not in processing state or not found")
	}

	return nil
}

func sleepCancelable(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
