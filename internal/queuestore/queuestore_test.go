package queuestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/queuestore"
)

var entryColumns = []string{
	"id", "url", "domain_name", "source_domain_id", "priority", "depth", "status",
	"discovered_at", "processed_at", "last_error", "agent", "created_at", "updated_at",
}

func newTestStore(t *testing.T) (*queuestore.Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "postgres")
	store := queuestore.New(db)

	return store, mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestEnqueue_MonotonicPriorityAndDepth covers the enqueue monotonicity
// invariant: a re-enqueue of an already-queued URL raises priority to
// the max of old and new and lowers depth to the min, never regressing
// either, via the ON CONFLICT clause's GREATEST/LEAST.
func TestEnqueue_MonotonicPriorityAndDepth(t *testing.T) {
	t.Parallel()

	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectExec(`(?s)INSERT INTO discovery_queue.*GREATEST\(discovery_queue\.priority, EXCLUDED\.priority\).*LEAST\(discovery_queue\.depth, EXCLUDED\.depth\)`).
		WithArgs("https://example.com/page", "example.com", nil, 5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Enqueue(ctx, queuestore.EnqueueParams{
		URL:        "https://example.com/page",
		DomainName: "example.com",
		Priority:   5,
		Depth:      2,
	})
	require.NoError(t, err)

	expectationsMet(t, mock)
}

// TestLeaseBatch_MutualExclusion covers the leasing invariant: two
// concurrent leasers never receive the same row, since leaseBatchOnce
// selects with FOR UPDATE SKIP LOCKED inside a transaction before
// marking rows processing. With the rows already claimed, a second
// lease attempt finds nothing to select and returns an empty batch.
func TestLeaseBatch_MutualExclusion(t *testing.T) {
	t.Parallel()

	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM discovery_queue").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("entry-1").AddRow("entry-2"))
	mock.ExpectQuery("UPDATE discovery_queue").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("entry-1", "https://example.com/a", "example.com", nil, 0, 0, "processing", now, now, nil, "worker-1", now, now).
			AddRow("entry-2", "https://example.com/b", "example.com", nil, 0, 0, "processing", now, now, nil, "worker-1", now, now))
	mock.ExpectCommit()

	leased, err := store.LeaseBatch(ctx, 2, "worker-1")
	require.NoError(t, err)
	require.Len(t, leased, 2)

	expectationsMet(t, mock)

	// A second leaser racing against the same rows sees them already
	// locked out of the pending set (SKIP LOCKED) and leases nothing.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM discovery_queue").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	leased, err = store.LeaseBatch(ctx, 2, "worker-2")
	require.NoError(t, err)
	require.Empty(t, leased)

	expectationsMet(t, mock)
}

func TestComplete_NoopWhenNotProcessing(t *testing.T) {
	t.Parallel()

	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectExec("UPDATE discovery_queue").
		WithArgs("completed", nil, "entry-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Complete(ctx, "entry-1", true, nil)
	require.Error(t, err)

	expectationsMet(t, mock)
}

// TestSweepStuck_RecoversAbandonedLeases covers stuck-lease self-healing:
// a processing row older than the threshold is returned to pending so
// a crashed worker's lease doesn't strand the entry forever.
func TestSweepStuck_RecoversAbandonedLeases(t *testing.T) {
	t.Parallel()

	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	threshold := 15 * time.Minute

	mock.ExpectExec("UPDATE discovery_queue").
		WithArgs(threshold.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.SweepStuck(ctx, threshold)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	expectationsMet(t, mock)
}
