package summary

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
	"github.com/stretchr/testify/require"
)

func testAggregator(t *testing.T) (*Aggregator, *store.MockStore,
	review.Summary) {

	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := NewAggregator(log)
	mock := store.NewMockStore()

	summaryKey, err := review.SummaryKey("unit-1", "sub-1", "alice")
	require.NoError(t, err)

	summary, err := mock.CreateSummary(context.Background(),
		store.CreateSummaryParams{
			SummaryKey:    summaryKey,
			UnitID:        "unit-1",
			SubmissionKey: "sub-1",
			RevieweeKey:   "alice",
			CreateDate:    time.Now().UTC(),
		})
	require.NoError(t, err)

	return agg, mock, summary
}

func stepFor(summary review.Summary, state review.StepState) review.Step {
	return review.Step{
		Key:        "step:unit-1:sub-1:alice:bob",
		SummaryKey: summary.Key,
		State:      state,
	}
}

// TestCreatedThenTransitioned verifies counters move with the step through
// its lifecycle.
func TestCreatedThenTransitioned(t *testing.T) {
	t.Parallel()

	agg, mock, summary := testAggregator(t)
	ctx := context.Background()
	now := time.Now().UTC()

	step := stepFor(summary, review.StateAssigned)
	require.NoError(t, agg.OnStepCreated(ctx, mock, step, now))

	got, err := mock.GetSummary(ctx, summary.Key)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.AssignedCount)

	// Assigned -> completed moves the count across counters.
	delta := review.SummaryDelta{
		Decrement: fn.Some(review.StateAssigned),
		Increment: fn.Some(review.StateCompleted),
	}
	step.State = review.StateCompleted
	require.NoError(t,
		agg.OnStepTransitioned(ctx, mock, step, delta, now),
	)

	got, err = mock.GetSummary(ctx, summary.Key)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.AssignedCount)
	require.EqualValues(t, 1, got.CompletedCount)

	// Removal drops the completed count.
	removeDelta := review.SummaryDelta{
		Decrement: fn.Some(review.StateCompleted),
	}
	require.NoError(t,
		agg.OnStepRemoved(ctx, mock, step, removeDelta, now),
	)

	got, err = mock.GetSummary(ctx, summary.Key)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.TotalCount())
}

// TestDecrementBelowZeroIsConstraintError verifies drift between counters
// and census is reported, not clamped.
func TestDecrementBelowZeroIsConstraintError(t *testing.T) {
	t.Parallel()

	agg, mock, summary := testAggregator(t)
	ctx := context.Background()
	now := time.Now().UTC()

	step := stepFor(summary, review.StateAssigned)
	delta := review.SummaryDelta{
		Decrement: fn.Some(review.StateAssigned),
		Increment: fn.Some(review.StateExpired),
	}

	err := agg.OnStepTransitioned(ctx, mock, step, delta, now)
	require.True(t, review.IsConstraintError(err))

	// The failed adjustment leaves the counters untouched.
	got, err := mock.GetSummary(ctx, summary.Key)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.TotalCount())
}

// TestUnknownSummaryKey verifies the missing-summary sentinel propagates.
func TestUnknownSummaryKey(t *testing.T) {
	t.Parallel()

	agg, mock, _ := testAggregator(t)
	ctx := context.Background()

	step := review.Step{
		Key:        "step:u:s:a:b",
		SummaryKey: "summary:u:s:a",
		State:      review.StateAssigned,
	}
	err := agg.OnStepCreated(ctx, mock, step, time.Now().UTC())
	require.ErrorIs(t, err, review.ErrSummaryNotFound)
}
