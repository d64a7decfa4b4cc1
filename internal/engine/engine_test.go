package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source for deterministic lifecycle tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts = append(
		[]Option{WithClock(clock.Now), WithLogger(log)}, opts...,
	)
	return New(store.NewMockStore(), opts...), clock
}

func assignParams(reviewer string, kind review.AssignerKind) AssignParams {
	return AssignParams{
		UnitID:        "unit-1",
		SubmissionKey: "sub-1",
		RevieweeKey:   "alice",
		ReviewerKey:   reviewer,
		AssignerKind:  kind,
	}
}

func requireCounts(t *testing.T, eng *Engine, assigned, completed,
	expired int64) {

	t.Helper()

	summary, err := eng.GetSummary(
		context.Background(), "unit-1", "sub-1", "alice",
	)
	require.NoError(t, err)
	require.Equal(t, assigned, summary.AssignedCount, "assigned")
	require.Equal(t, completed, summary.CompletedCount, "completed")
	require.Equal(t, expired, summary.ExpiredCount, "expired")
}

// TestAssignIdempotent verifies that re-assigning the same identity tuple
// returns the existing step without touching the counters.
func TestAssignIdempotent(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	first, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	second, err := eng.Assign(
		ctx, assignParams("bob", review.AssignerAuto),
	)
	require.NoError(t, err)
	require.Equal(t, first.Key, second.Key)
	require.Equal(t, first.State, second.State)

	requireCounts(t, eng, 1, 0, 0)
}

// TestAssignDistinctReviewers verifies that different reviewers on the same
// submission get distinct steps rolled into the same summary.
func TestAssignDistinctReviewers(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	bob, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	carol, err := eng.Assign(
		ctx, assignParams("carol", review.AssignerHuman),
	)
	require.NoError(t, err)

	require.NotEqual(t, bob.Key, carol.Key)
	require.Equal(t, bob.SummaryKey, carol.SummaryKey)

	requireCounts(t, eng, 2, 0, 0)
}

// TestCompleteAttachesReview verifies completion creates a review and sets
// the step's review reference.
func TestCompleteAttachesReview(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	completed, err := eng.Complete(ctx, step.Key, "solid work")
	require.NoError(t, err)
	require.Equal(t, review.StateCompleted, completed.State)
	require.True(t, completed.ReviewKey.IsSome())

	requireCounts(t, eng, 0, 1, 0)

	// Completing again is an illegal transition.
	_, err = eng.Complete(ctx, step.Key, "again")
	require.True(t, review.IsTransitionError(err))

	requireCounts(t, eng, 0, 1, 0)
}

// TestExpireHumanAssignedFails verifies the asymmetric expiry rule at the
// engine surface.
func TestExpireHumanAssignedFails(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(
		ctx, assignParams("bob", review.AssignerHuman),
	)
	require.NoError(t, err)

	_, err = eng.Expire(ctx, step.Key)
	require.True(t, review.IsTransitionError(err))

	requireCounts(t, eng, 1, 0, 0)
}

// TestWorkedExampleScenario walks the full lifecycle: two assignments, one
// completion, one expiry, then an illegal expire on the completed step.
func TestWorkedExampleScenario(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	bob, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	carol, err := eng.Assign(
		ctx, assignParams("carol", review.AssignerAuto),
	)
	require.NoError(t, err)

	requireCounts(t, eng, 2, 0, 0)

	_, err = eng.Complete(ctx, bob.Key, "nice")
	require.NoError(t, err)
	requireCounts(t, eng, 1, 1, 0)

	_, err = eng.Expire(ctx, carol.Key)
	require.NoError(t, err)
	requireCounts(t, eng, 0, 1, 1)

	// Expiring the completed step reports the observed state.
	_, err = eng.Expire(ctx, bob.Key)
	require.True(t, review.IsTransitionError(err))

	var transitionErr *review.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, review.StateCompleted, transitionErr.Before)
	require.Equal(t, review.StateExpired, transitionErr.After)
}

// TestRemoveFreesCapacity verifies the admission cap counts only
// non-removed steps: removal frees a slot for a new assignment.
func TestRemoveFreesCapacity(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t, WithMaxUnremovedSteps(2))
	ctx := context.Background()

	bob, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	_, err = eng.Assign(ctx, assignParams("carol", review.AssignerAuto))
	require.NoError(t, err)

	// Cap reached.
	_, err = eng.Assign(ctx, assignParams("dave", review.AssignerAuto))
	require.True(t, review.IsNotAssignableError(err))

	var notAssignable *review.NotAssignableError
	require.ErrorAs(t, err, &notAssignable)
	require.EqualValues(t, 2, notAssignable.Count)
	require.EqualValues(t, 2, notAssignable.Limit)

	// Removing one frees a slot.
	require.NoError(t, eng.Remove(ctx, bob.Key))

	_, err = eng.Assign(ctx, assignParams("dave", review.AssignerAuto))
	require.NoError(t, err)
}

// TestRemoveIdempotentAndFreezing verifies removal is a no-op the second
// time and freezes the step against all further transitions.
func TestRemoveIdempotentAndFreezing(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	require.NoError(t, eng.Remove(ctx, step.Key))
	requireCounts(t, eng, 0, 0, 0)

	// Second removal is a no-op.
	require.NoError(t, eng.Remove(ctx, step.Key))
	requireCounts(t, eng, 0, 0, 0)

	// Frozen against transitions.
	_, err = eng.Complete(ctx, step.Key, "late")
	require.True(t, review.IsRemovedError(err))

	_, err = eng.Expire(ctx, step.Key)
	require.True(t, review.IsRemovedError(err))
}

// TestRemoveCompletedKeepsCompletedCount verifies removing a completed step
// decrements the completed counter, not assigned.
func TestRemoveCompletedKeepsCompletedCount(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	_, err = eng.Complete(ctx, step.Key, "done")
	require.NoError(t, err)
	requireCounts(t, eng, 0, 1, 0)

	require.NoError(t, eng.Remove(ctx, step.Key))
	requireCounts(t, eng, 0, 0, 0)

	// The frozen record still shows its terminal state.
	got, err := eng.GetStep(ctx, step.Key)
	require.NoError(t, err)
	require.Equal(t, review.StateCompleted, got.State)
	require.True(t, got.Removed)
	require.True(t, got.ReviewKey.IsSome())
}

// TestAssignRevivesRemovedStep verifies that re-assigning a removed tuple
// clears the soft-delete flag and resets the record to assigned.
func TestAssignRevivesRemovedStep(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	_, err = eng.Complete(ctx, step.Key, "done")
	require.NoError(t, err)
	require.NoError(t, eng.Remove(ctx, step.Key))
	requireCounts(t, eng, 0, 0, 0)

	revived, err := eng.Assign(
		ctx, assignParams("bob", review.AssignerAuto),
	)
	require.NoError(t, err)
	require.Equal(t, step.Key, revived.Key)
	require.Equal(t, review.StateAssigned, revived.State)
	require.False(t, revived.Removed)
	require.True(t, revived.ReviewKey.IsNone())

	requireCounts(t, eng, 1, 0, 0)
}

// TestReviveCountsAgainstCap verifies a revived step re-enters the
// admission census.
func TestReviveCountsAgainstCap(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t, WithMaxUnremovedSteps(1))
	ctx := context.Background()

	bob, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	require.NoError(t, eng.Remove(ctx, bob.Key))

	// Slot is free again; carol takes it.
	_, err = eng.Assign(ctx, assignParams("carol", review.AssignerAuto))
	require.NoError(t, err)

	// Reviving bob would exceed the cap.
	_, err = eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.True(t, review.IsNotAssignableError(err))
}

// TestSubmitStartsProcessOnce verifies submission creates the summary and a
// second submission for the same triple is rejected.
func TestSubmitStartsProcessOnce(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	sub, err := eng.Submit(ctx, SubmitParams{
		UnitID:        "unit-1",
		RevieweeKey:   "alice",
		SubmissionKey: "sub-1",
		Contents:      "my essay",
	})
	require.NoError(t, err)
	require.Equal(t, "sub-1", sub.Key)

	summary, err := eng.GetSummary(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	require.EqualValues(t, 0, summary.TotalCount())

	_, err = eng.Submit(ctx, SubmitParams{
		UnitID:        "unit-1",
		RevieweeKey:   "alice",
		SubmissionKey: "sub-1",
		Contents:      "my essay v2",
	})
	require.True(t, review.IsReviewProcessAlreadyStartedError(err))
}

// TestSweepExpiredWindow verifies the sweep expires only machine-assigned
// open steps older than the window and skips contested ones.
func TestSweepExpiredWindow(t *testing.T) {
	t.Parallel()

	eng, clock := testEngine(t)
	ctx := context.Background()

	oldAuto, err := eng.Assign(
		ctx, assignParams("bob", review.AssignerAuto),
	)
	require.NoError(t, err)

	oldHuman, err := eng.Assign(
		ctx, assignParams("carol", review.AssignerHuman),
	)
	require.NoError(t, err)

	oldDone, err := eng.Assign(
		ctx, assignParams("dave", review.AssignerAuto),
	)
	require.NoError(t, err)
	_, err = eng.Complete(ctx, oldDone.Key, "early finisher")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)

	freshAuto, err := eng.Assign(
		ctx, assignParams("erin", review.AssignerAuto),
	)
	require.NoError(t, err)

	expired, err := eng.SweepExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := eng.GetStep(ctx, oldAuto.Key)
	require.NoError(t, err)
	require.Equal(t, review.StateExpired, got.State)

	// Human-assigned, completed, and fresh steps are untouched.
	for _, key := range []string{
		oldHuman.Key, freshAuto.Key,
	} {
		got, err := eng.GetStep(ctx, key)
		require.NoError(t, err)
		require.Equal(t, review.StateAssigned, got.State)
	}

	got, err = eng.GetStep(ctx, oldDone.Key)
	require.NoError(t, err)
	require.Equal(t, review.StateCompleted, got.State)
}

// TestConcurrentCompletionRace verifies exactly one of many concurrent
// completions succeeds and the counters stay consistent.
func TestConcurrentCompletionRace(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	step, err := eng.Assign(ctx, assignParams("bob", review.AssignerAuto))
	require.NoError(t, err)

	const racers = 8
	errs := make(chan error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Complete(ctx, step.Key, "race entry")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.True(t, review.IsTransitionError(err))
	}
	require.Equal(t, 1, successes)

	requireCounts(t, eng, 0, 1, 0)
}

// TestAssignInvalidComponents verifies key validation surfaces as
// ConstraintError from the engine.
func TestAssignInvalidComponents(t *testing.T) {
	t.Parallel()

	eng, _ := testEngine(t)
	ctx := context.Background()

	params := assignParams("bob:1", review.AssignerAuto)
	_, err := eng.Assign(ctx, params)
	require.True(t, review.IsConstraintError(err))

	params = assignParams("", review.AssignerHuman)
	_, err = eng.Assign(ctx, params)
	require.True(t, review.IsConstraintError(err))
}
