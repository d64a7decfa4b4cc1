package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/db"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/stretchr/testify/require"
)

// testSQLStore creates a fresh SQLite-backed store with all migrations
// applied.
func testSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sqliteStore, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "test.db"),
	}, log)
	require.NoError(t, err)

	store := NewSQLStore(sqliteStore.BaseDB, log)
	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// seedSummary creates a summary the step tests can hang steps off.
func seedSummary(t *testing.T, s Storage, now time.Time) review.Summary {
	t.Helper()

	summaryKey, err := review.SummaryKey("unit-1", "sub-1", "alice")
	require.NoError(t, err)

	summary, err := s.CreateSummary(context.Background(),
		CreateSummaryParams{
			SummaryKey:    summaryKey,
			UnitID:        "unit-1",
			SubmissionKey: "sub-1",
			RevieweeKey:   "alice",
			CreateDate:    now,
		})
	require.NoError(t, err)

	return summary
}

// seedStep creates an assigned step for the given reviewer.
func seedStep(t *testing.T, s Storage, summaryKey, reviewer string,
	kind review.AssignerKind, now time.Time) review.Step {

	t.Helper()

	stepKey, err := review.StepKey("unit-1", "sub-1", "alice", reviewer)
	require.NoError(t, err)

	step, err := s.CreateStep(context.Background(), CreateStepParams{
		StepKey:       stepKey,
		SummaryKey:    summaryKey,
		UnitID:        "unit-1",
		SubmissionKey: "sub-1",
		RevieweeKey:   "alice",
		ReviewerKey:   reviewer,
		AssignerKind:  kind,
		State:         review.StateAssigned,
		CreateDate:    now,
	})
	require.NoError(t, err)

	return step
}

// TestStepRoundTrip verifies that a created step reads back identically.
func TestStepRoundTrip(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	summary := seedSummary(t, store, now)
	created := seedStep(
		t, store, summary.Key, "bob", review.AssignerAuto, now,
	)

	got, err := store.GetStep(ctx, created.Key)
	require.NoError(t, err)
	require.Equal(t, created, got)

	require.Equal(t, review.StateAssigned, got.State)
	require.False(t, got.Removed)
	require.True(t, got.ReviewKey.IsNone())
	require.True(t, got.CreateDate.Equal(now))
}

// TestGetStepNotFound verifies the not-found sentinel mapping.
func TestGetStepNotFound(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)

	_, err := store.GetStep(context.Background(), "step:u:s:a:b")
	require.ErrorIs(t, err, review.ErrStepNotFound)
}

// TestGetSummaryNotFound verifies the not-found sentinel mapping.
func TestGetSummaryNotFound(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)

	_, err := store.GetSummary(context.Background(), "summary:u:s:a")
	require.ErrorIs(t, err, review.ErrSummaryNotFound)
}

// TestDuplicateStepKeyRejected verifies that inserting the same identity
// tuple twice violates the unique constraint.
func TestDuplicateStepKeyRejected(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	now := time.Now().UTC()

	summary := seedSummary(t, store, now)
	seedStep(t, store, summary.Key, "bob", review.AssignerHuman, now)

	stepKey, err := review.StepKey("unit-1", "sub-1", "alice", "bob")
	require.NoError(t, err)

	_, err = store.CreateStep(context.Background(), CreateStepParams{
		StepKey:       stepKey,
		SummaryKey:    summary.Key,
		UnitID:        "unit-1",
		SubmissionKey: "sub-1",
		RevieweeKey:   "alice",
		ReviewerKey:   "bob",
		AssignerKind:  review.AssignerHuman,
		State:         review.StateAssigned,
		CreateDate:    now,
	})
	require.Error(t, err)
	require.True(t, db.IsUniqueConstraintError(db.MapSQLError(err)))
}

// TestUpdateStepCompletion verifies that a completion update persists the
// state, review reference, and change timestamp.
func TestUpdateStepCompletion(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	summary := seedSummary(t, store, now)
	step := seedStep(
		t, store, summary.Key, "bob", review.AssignerAuto, now,
	)

	// The review row must exist before the step can reference it.
	_, err := store.CreateReview(ctx, CreateReviewParams{
		ReviewKey:   "rev-1",
		ReviewerKey: "bob",
		Contents:    "looks good",
		CreateDate:  now,
	})
	require.NoError(t, err)

	later := now.Add(time.Minute)
	err = store.UpdateStep(ctx, UpdateStepParams{
		StepKey:    step.Key,
		State:      review.StateCompleted,
		Removed:    false,
		ReviewKey:  fn.Some("rev-1"),
		ChangeDate: later,
	})
	require.NoError(t, err)

	got, err := store.GetStep(ctx, step.Key)
	require.NoError(t, err)
	require.Equal(t, review.StateCompleted, got.State)
	require.Equal(t, fn.Some("rev-1"), got.ReviewKey)
	require.True(t, got.ChangeDate.Equal(later))
	require.True(t, got.CreateDate.Equal(now))
}

// TestWithTxRollback verifies that an error inside the transaction callback
// discards all writes made within it.
func TestWithTxRollback(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	errBoom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context,
		tx Storage) error {

		seedSummary(t, tx, now)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	summaryKey, err := review.SummaryKey("unit-1", "sub-1", "alice")
	require.NoError(t, err)

	_, err = store.GetSummary(ctx, summaryKey)
	require.ErrorIs(t, err, review.ErrSummaryNotFound)
}

// TestWithTxCommit verifies that writes inside a successful transaction are
// visible afterwards, including from a nested WithTx joining the outer
// transaction.
func TestWithTxCommit(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.WithTx(ctx, func(ctx context.Context,
		tx Storage) error {

		summary := seedSummary(t, tx, now)

		// Nested WithTx runs against the same transaction.
		return tx.WithTx(ctx, func(ctx context.Context,
			inner Storage) error {

			seedStep(
				t, inner, summary.Key, "bob",
				review.AssignerAuto, now,
			)
			return nil
		})
	})
	require.NoError(t, err)

	stepKey, err := review.StepKey("unit-1", "sub-1", "alice", "bob")
	require.NoError(t, err)

	_, err = store.GetStep(ctx, stepKey)
	require.NoError(t, err)
}

// TestCountAndListSteps verifies the census queries used by admission
// control and the expiry sweep.
func TestCountAndListSteps(t *testing.T) {
	t.Parallel()

	store := testSQLStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	summary := seedSummary(t, store, now)
	auto := seedStep(
		t, store, summary.Key, "bob", review.AssignerAuto, now,
	)
	human := seedStep(
		t, store, summary.Key, "carol", review.AssignerHuman, now,
	)

	count, err := store.CountUnremovedSteps(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Removing a step drops it from the census.
	err = store.UpdateStep(ctx, UpdateStepParams{
		StepKey:    human.Key,
		State:      human.State,
		Removed:    true,
		ReviewKey:  fn.None[string](),
		ChangeDate: now,
	})
	require.NoError(t, err)

	count, err = store.CountUnremovedSteps(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = store.CountUnremovedStepsBySummary(ctx, summary.Key)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	// Listing by summary still includes the removed step.
	steps, err := store.ListStepsBySummary(ctx, summary.Key)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	// Only the auto-assigned open step is an expiry candidate.
	candidates, err := store.ListExpirableSteps(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, auto.Key, candidates[0].Key)

	// A cutoff before creation excludes it.
	candidates, err = store.ListExpirableSteps(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Empty(t, candidates)
}
