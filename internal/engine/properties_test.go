package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roasbeef/peertrack/internal/db"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestCounterInvariant verifies that after any sequence of lifecycle
// operations, each summary's counters equal the census of its non-removed
// steps broken down by state.
func TestCounterInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := newFakeClock()
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		eng := New(
			store.NewMockStore(),
			WithClock(clock.Now), WithLogger(log),
		)
		ctx := context.Background()

		reviewers := []string{"r1", "r2", "r3", "r4"}
		reviewerGen := rapid.SampledFrom(reviewers)

		numOps := rapid.IntRange(1, 40).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			reviewer := reviewerGen.Draw(t, "reviewer")
			stepKey, err := review.StepKey(
				"unit-1", "sub-1", "alice", reviewer,
			)
			if err != nil {
				t.Fatal(err)
			}

			op := rapid.IntRange(0, 3).Draw(t, "op")
			switch op {
			case 0:
				kind := review.AssignerAuto
				if rapid.Bool().Draw(t, "human") {
					kind = review.AssignerHuman
				}
				_, err = eng.Assign(ctx, AssignParams{
					UnitID:        "unit-1",
					SubmissionKey: "sub-1",
					RevieweeKey:   "alice",
					ReviewerKey:   reviewer,
					AssignerKind:  kind,
				})

			case 1:
				_, err = eng.Complete(ctx, stepKey, "fb")

			case 2:
				_, err = eng.Expire(ctx, stepKey)

			case 3:
				err = eng.Remove(ctx, stepKey)
			}

			// Domain rejections are expected outcomes of random
			// sequences; anything else is a real failure.
			if err != nil && !isDomainError(err) {
				t.Fatalf("op %d: unexpected error: %v", op, err)
			}
		}

		checkCensus(t, eng, ctx)
	})
}

// isDomainError reports whether the error is one of the expected lifecycle
// rejections.
func isDomainError(err error) bool {
	return review.IsTransitionError(err) ||
		review.IsRemovedError(err) ||
		review.IsNotAssignableError(err) ||
		review.IsConstraintError(err) ||
		errors.Is(err, review.ErrStepNotFound)
}

// checkCensus compares the stored counters against a recount of the
// summary's steps.
func checkCensus(t *rapid.T, eng *Engine, ctx context.Context) {
	summary, err := eng.GetSummary(ctx, "unit-1", "sub-1", "alice")
	if errors.Is(err, review.ErrSummaryNotFound) {
		return
	}
	if err != nil {
		t.Fatal(err)
	}

	steps, err := eng.ListSteps(ctx, "unit-1", "sub-1", "alice")
	if err != nil {
		t.Fatal(err)
	}

	var assigned, completed, expired int64
	for _, step := range steps {
		if step.Removed {
			continue
		}
		switch step.State {
		case review.StateAssigned:
			assigned++
		case review.StateCompleted:
			completed++
		case review.StateExpired:
			expired++
		}

		// review_key is set iff the step is completed.
		if step.State == review.StateCompleted {
			if step.ReviewKey.IsNone() {
				t.Fatalf("completed step %s missing review key",
					step.Key)
			}
		} else if step.ReviewKey.IsSome() {
			t.Fatalf("non-completed step %s has review key",
				step.Key)
		}
	}

	if summary.AssignedCount != assigned ||
		summary.CompletedCount != completed ||
		summary.ExpiredCount != expired {

		t.Fatalf("counter drift: stored (%d,%d,%d) vs census "+
			"(%d,%d,%d)", summary.AssignedCount,
			summary.CompletedCount, summary.ExpiredCount,
			assigned, completed, expired)
	}
}

// TestCounterInvariantSQLBacked runs a short fixed operation sequence
// against the SQLite-backed store to confirm the invariant holds end to
// end on the real backend.
func TestCounterInvariantSQLBacked(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sqliteStore, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "test.db"),
	}, log)
	require.NoError(t, err)

	storage := store.NewSQLStore(sqliteStore.BaseDB, log)
	t.Cleanup(func() {
		storage.Close()
	})

	clock := newFakeClock()
	eng := New(storage, WithClock(clock.Now), WithLogger(log))
	ctx := context.Background()

	for _, reviewer := range []string{"r1", "r2", "r3"} {
		_, err := eng.Assign(
			ctx, assignParams(reviewer, review.AssignerAuto),
		)
		require.NoError(t, err)
	}

	r1Key, err := review.StepKey("unit-1", "sub-1", "alice", "r1")
	require.NoError(t, err)
	r2Key, err := review.StepKey("unit-1", "sub-1", "alice", "r2")
	require.NoError(t, err)

	_, err = eng.Complete(ctx, r1Key, "fb")
	require.NoError(t, err)

	_, err = eng.Expire(ctx, r2Key)
	require.NoError(t, err)

	require.NoError(t, eng.Remove(ctx, r2Key))

	requireCounts(t, eng, 1, 1, 0)
}
