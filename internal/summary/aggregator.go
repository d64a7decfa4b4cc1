package summary

import (
	"context"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
)

// Aggregator maintains the per-summary counters in lockstep with step
// mutations. Every method takes a transaction-bound Storage so the counter
// adjustment commits or aborts atomically with the step write it mirrors.
type Aggregator struct {
	log *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}

	return &Aggregator{
		log: log.With("component", "summary"),
	}
}

// OnStepCreated bumps the counter for the new step's state.
func (a *Aggregator) OnStepCreated(ctx context.Context, tx store.Storage,
	step review.Step, now time.Time) error {

	delta := review.SummaryDelta{
		Increment: fn.Some(step.State),
	}
	return a.apply(ctx, tx, step.SummaryKey, delta, now)
}

// OnStepTransitioned moves one count between state counters according to
// the transition's delta.
func (a *Aggregator) OnStepTransitioned(ctx context.Context,
	tx store.Storage, step review.Step, delta review.SummaryDelta,
	now time.Time) error {

	return a.apply(ctx, tx, step.SummaryKey, delta, now)
}

// OnStepRemoved drops the removed step's state from the counters.
func (a *Aggregator) OnStepRemoved(ctx context.Context, tx store.Storage,
	step review.Step, delta review.SummaryDelta, now time.Time) error {

	return a.apply(ctx, tx, step.SummaryKey, delta, now)
}

// apply loads the summary, adjusts its counters per the delta, and writes
// the result back. A decrement that would drive a counter negative means
// the stored counters have diverged from the step census and is reported
// as a ConstraintError rather than clamped.
func (a *Aggregator) apply(ctx context.Context, tx store.Storage,
	summaryKey string, delta review.SummaryDelta, now time.Time) error {

	summary, err := tx.GetSummary(ctx, summaryKey)
	if err != nil {
		return err
	}

	if err := applyDelta(&summary, delta); err != nil {
		return err
	}

	a.log.DebugContext(ctx, "updating summary counters",
		"summary_key", summaryKey,
		"assigned", summary.AssignedCount,
		"completed", summary.CompletedCount,
		"expired", summary.ExpiredCount)

	return tx.UpdateSummaryCounts(ctx, store.UpdateSummaryCountsParams{
		SummaryKey:     summary.Key,
		AssignedCount:  summary.AssignedCount,
		CompletedCount: summary.CompletedCount,
		ExpiredCount:   summary.ExpiredCount,
		ChangeDate:     now,
	})
}

// applyDelta mutates the summary's counters in place.
func applyDelta(summary *review.Summary, delta review.SummaryDelta) error {
	var err error
	delta.Decrement.WhenSome(func(state review.StepState) {
		counter := counterFor(summary, state)
		if *counter <= 0 {
			err = review.NewConstraintError(
				"summary %s: %s counter would go negative",
				summary.Key, state,
			)
			return
		}
		*counter--
	})
	if err != nil {
		return err
	}

	delta.Increment.WhenSome(func(state review.StepState) {
		*counterFor(summary, state)++
	})

	return nil
}

func counterFor(summary *review.Summary,
	state review.StepState) *int64 {

	switch state {
	case review.StateAssigned:
		return &summary.AssignedCount
	case review.StateCompleted:
		return &summary.CompletedCount
	default:
		return &summary.ExpiredCount
	}
}
