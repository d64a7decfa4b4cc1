package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
	"github.com/roasbeef/peertrack/internal/summary"
)

// Engine drives the review step lifecycle: assignment with admission
// control, completion, expiry, soft deletion, and the periodic expiry
// sweep. All mutations run inside a single storage transaction so the step
// write and its counter adjustment commit atomically.
type Engine struct {
	cfg Config

	store store.Storage

	aggregator *summary.Aggregator

	log *slog.Logger
}

// New creates an Engine over the given storage backend.
func New(storage store.Storage, opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.Logger.With("component", "engine")

	return &Engine{
		cfg:        cfg,
		store:      storage,
		aggregator: summary.NewAggregator(cfg.Logger),
		log:        log,
	}
}

// SubmitParams holds the inputs for Submit.
type SubmitParams struct {
	// UnitID is the unit the work is submitted for.
	UnitID string

	// RevieweeKey identifies the submitting participant.
	RevieweeKey string

	// SubmissionKey optionally fixes the submission's identity. When
	// empty a random key is generated.
	SubmissionKey string

	// Contents is the opaque submitted payload.
	Contents string
}

// Submit records a reviewee's work product and starts its review process by
// creating the owning summary. Submitting again for a submission whose
// process already started fails with ReviewProcessAlreadyStartedError.
func (e *Engine) Submit(ctx context.Context,
	params SubmitParams) (review.Submission, error) {

	submissionKey := params.SubmissionKey
	if submissionKey == "" {
		submissionKey = uuid.NewString()
	}

	summaryKey, err := review.SummaryKey(
		params.UnitID, submissionKey, params.RevieweeKey,
	)
	if err != nil {
		return review.Submission{}, err
	}

	now := e.cfg.Clock()

	var sub review.Submission
	err = e.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		_, err := tx.GetSummary(ctx, summaryKey)
		switch {
		case err == nil:
			return &review.ReviewProcessAlreadyStartedError{
				SummaryKey: summaryKey,
			}

		case !errors.Is(err, review.ErrSummaryNotFound):
			return fmt.Errorf("unable to check summary: %w", err)
		}

		sub, err = tx.CreateSubmission(ctx, store.CreateSubmissionParams{
			SubmissionKey: submissionKey,
			UnitID:        params.UnitID,
			RevieweeKey:   params.RevieweeKey,
			Contents:      params.Contents,
			CreateDate:    now,
		})
		if err != nil {
			return fmt.Errorf("unable to create submission: %w", err)
		}

		_, err = tx.CreateSummary(ctx, store.CreateSummaryParams{
			SummaryKey:    summaryKey,
			UnitID:        params.UnitID,
			SubmissionKey: submissionKey,
			RevieweeKey:   params.RevieweeKey,
			CreateDate:    now,
		})
		if err != nil {
			return fmt.Errorf("unable to create summary: %w", err)
		}

		return nil
	})
	if err != nil {
		return review.Submission{}, err
	}

	e.log.InfoContext(ctx, "submission recorded",
		"submission_key", sub.Key, "unit_id", sub.UnitID,
		"reviewee_key", sub.RevieweeKey)

	return sub, nil
}

// AssignParams holds the inputs for Assign.
type AssignParams struct {
	// UnitID is the unit the reviewed work belongs to.
	UnitID string

	// SubmissionKey references the reviewed submission.
	SubmissionKey string

	// RevieweeKey identifies the participant whose work is reviewed.
	RevieweeKey string

	// ReviewerKey identifies the reviewer to assign.
	ReviewerKey string

	// AssignerKind records who is making the assignment.
	AssignerKind review.AssignerKind
}

// Assign creates a review step for the given identity tuple. Assignment is
// idempotent: re-assigning an existing non-removed tuple returns the stored
// step unchanged. Re-assigning a removed tuple revives the record in place,
// resetting it to the assigned state. New and revived steps count against
// the admission cap, checked live inside the transaction.
func (e *Engine) Assign(ctx context.Context,
	params AssignParams) (review.Step, error) {

	if !review.IsValidAssignerKind(params.AssignerKind.String()) {
		return review.Step{}, review.NewConstraintError(
			"unknown assigner kind %q", params.AssignerKind,
		)
	}

	stepKey, err := review.StepKey(
		params.UnitID, params.SubmissionKey, params.RevieweeKey,
		params.ReviewerKey,
	)
	if err != nil {
		return review.Step{}, err
	}

	summaryKey, err := review.SummaryKey(
		params.UnitID, params.SubmissionKey, params.RevieweeKey,
	)
	if err != nil {
		return review.Step{}, err
	}

	now := e.cfg.Clock()

	var step review.Step
	err = e.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		existing, err := tx.GetStep(ctx, stepKey)
		switch {
		case err == nil && !existing.Removed:
			// Idempotent: same tuple, same step.
			step = existing
			return nil

		case err == nil:
			step, err = e.reviveStep(ctx, tx, existing, now)
			return err

		case !errors.Is(err, review.ErrStepNotFound):
			return fmt.Errorf("unable to check step: %w", err)
		}

		if err := e.checkCapacity(ctx, tx); err != nil {
			return err
		}

		if err := e.ensureSummary(
			ctx, tx, summaryKey, params, now,
		); err != nil {
			return err
		}

		step, err = tx.CreateStep(ctx, store.CreateStepParams{
			StepKey:       stepKey,
			SummaryKey:    summaryKey,
			UnitID:        params.UnitID,
			SubmissionKey: params.SubmissionKey,
			RevieweeKey:   params.RevieweeKey,
			ReviewerKey:   params.ReviewerKey,
			AssignerKind:  params.AssignerKind,
			State:         review.StateAssigned,
			CreateDate:    now,
		})
		if err != nil {
			return fmt.Errorf("unable to create step: %w", err)
		}

		return e.aggregator.OnStepCreated(ctx, tx, step, now)
	})
	if err != nil {
		return review.Step{}, err
	}

	e.log.InfoContext(ctx, "review step assigned",
		"step_key", step.Key, "assigner_kind", step.AssignerKind)

	return step, nil
}

// reviveStep clears a removed step's soft-delete flag and resets it to the
// assigned state, preserving the one-record-per-tuple identity. The revived
// step re-enters the admission census, so the cap is re-checked.
func (e *Engine) reviveStep(ctx context.Context, tx store.Storage,
	existing review.Step, now time.Time) (review.Step, error) {

	if err := e.checkCapacity(ctx, tx); err != nil {
		return review.Step{}, err
	}

	err := tx.UpdateStep(ctx, store.UpdateStepParams{
		StepKey:    existing.Key,
		State:      review.StateAssigned,
		Removed:    false,
		ReviewKey:  fn.None[string](),
		ChangeDate: now,
	})
	if err != nil {
		return review.Step{}, fmt.Errorf("unable to revive step: %w",
			err)
	}

	revived := existing
	revived.State = review.StateAssigned
	revived.Removed = false
	revived.ReviewKey = fn.None[string]()
	revived.ChangeDate = now

	err = e.aggregator.OnStepCreated(ctx, tx, revived, now)
	if err != nil {
		return review.Step{}, err
	}

	e.log.InfoContext(ctx, "removed review step revived",
		"step_key", revived.Key)

	return revived, nil
}

// checkCapacity enforces the admission cap against a live count of
// non-removed steps. The count runs inside the assign transaction, so under
// the single-writer backend it is exact and the cap can never overshoot.
func (e *Engine) checkCapacity(ctx context.Context,
	tx store.Storage) error {

	if e.cfg.MaxUnremovedSteps <= 0 {
		return nil
	}

	count, err := tx.CountUnremovedSteps(ctx)
	if err != nil {
		return fmt.Errorf("unable to count steps: %w", err)
	}

	if count >= e.cfg.MaxUnremovedSteps {
		return &review.NotAssignableError{
			Count: count,
			Limit: e.cfg.MaxUnremovedSteps,
		}
	}

	return nil
}

// ensureSummary creates the owning summary if it does not exist yet. Direct
// assignment without a prior Submit still gets a summary to roll up into.
func (e *Engine) ensureSummary(ctx context.Context, tx store.Storage,
	summaryKey string, params AssignParams, now time.Time) error {

	_, err := tx.GetSummary(ctx, summaryKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, review.ErrSummaryNotFound) {
		return fmt.Errorf("unable to check summary: %w", err)
	}

	_, err = tx.CreateSummary(ctx, store.CreateSummaryParams{
		SummaryKey:    summaryKey,
		UnitID:        params.UnitID,
		SubmissionKey: params.SubmissionKey,
		RevieweeKey:   params.RevieweeKey,
		CreateDate:    now,
	})
	if err != nil {
		return fmt.Errorf("unable to create summary: %w", err)
	}

	return nil
}

// Complete records the reviewer's feedback as an immutable Review and moves
// the step to the completed state. Only assigned, non-removed steps may
// complete; a second completion fails with TransitionError.
func (e *Engine) Complete(ctx context.Context, stepKey,
	reviewContents string) (review.Step, error) {

	now := e.cfg.Clock()
	reviewKey := uuid.NewString()

	var step review.Step
	err := e.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		current, err := tx.GetStep(ctx, stepKey)
		if err != nil {
			return err
		}

		stepDelta, summaryDelta, err := review.ApplyEvent(
			current, review.CompleteEvent{ReviewKey: reviewKey},
		)
		if err != nil {
			return err
		}

		_, err = tx.CreateReview(ctx, store.CreateReviewParams{
			ReviewKey:   reviewKey,
			ReviewerKey: current.ReviewerKey,
			Contents:    reviewContents,
			CreateDate:  now,
		})
		if err != nil {
			return fmt.Errorf("unable to create review: %w", err)
		}

		step, err = e.applyStepDelta(ctx, tx, current, stepDelta, now)
		if err != nil {
			return err
		}

		return e.aggregator.OnStepTransitioned(
			ctx, tx, step, summaryDelta, now,
		)
	})
	if err != nil {
		return review.Step{}, err
	}

	e.log.InfoContext(ctx, "review step completed",
		"step_key", step.Key, "review_key", reviewKey)

	return step, nil
}

// Expire cancels an automatically assigned, still-open step. Human-assigned
// or already-terminal steps fail with TransitionError.
func (e *Engine) Expire(ctx context.Context,
	stepKey string) (review.Step, error) {

	now := e.cfg.Clock()

	var step review.Step
	err := e.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		current, err := tx.GetStep(ctx, stepKey)
		if err != nil {
			return err
		}

		stepDelta, summaryDelta, err := review.ApplyEvent(
			current, review.ExpireEvent{},
		)
		if err != nil {
			return err
		}

		step, err = e.applyStepDelta(ctx, tx, current, stepDelta, now)
		if err != nil {
			return err
		}

		return e.aggregator.OnStepTransitioned(
			ctx, tx, step, summaryDelta, now,
		)
	})
	if err != nil {
		return review.Step{}, err
	}

	e.log.InfoContext(ctx, "review step expired", "step_key", step.Key)

	return step, nil
}

// Remove soft-deletes a step, freezing it in its current state and dropping
// it from the owning summary's counters. Removing an already-removed step
// is a no-op.
func (e *Engine) Remove(ctx context.Context, stepKey string) error {
	now := e.cfg.Clock()

	err := e.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		current, err := tx.GetStep(ctx, stepKey)
		if err != nil {
			return err
		}

		// Idempotent removal.
		if current.Removed {
			return nil
		}

		stepDelta, summaryDelta, err := review.ApplyEvent(
			current, review.RemoveEvent{},
		)
		if err != nil {
			return err
		}

		updated, err := e.applyStepDelta(
			ctx, tx, current, stepDelta, now,
		)
		if err != nil {
			return err
		}

		return e.aggregator.OnStepRemoved(
			ctx, tx, updated, summaryDelta, now,
		)
	})
	if err != nil {
		return err
	}

	e.log.InfoContext(ctx, "review step removed", "step_key", stepKey)

	return nil
}

// applyStepDelta persists a transition delta and returns the updated step.
func (e *Engine) applyStepDelta(ctx context.Context, tx store.Storage,
	current review.Step, delta review.StepDelta,
	now time.Time) (review.Step, error) {

	err := tx.UpdateStep(ctx, store.UpdateStepParams{
		StepKey:    current.Key,
		State:      delta.State,
		Removed:    delta.Removed,
		ReviewKey:  delta.ReviewKey,
		ChangeDate: now,
	})
	if err != nil {
		return review.Step{}, fmt.Errorf("unable to update step: %w",
			err)
	}

	updated := current
	updated.State = delta.State
	updated.Removed = delta.Removed
	updated.ReviewKey = delta.ReviewKey
	updated.ChangeDate = now
	return updated, nil
}

// GetStep retrieves a step by its key.
func (e *Engine) GetStep(ctx context.Context,
	stepKey string) (review.Step, error) {

	return e.store.GetStep(ctx, stepKey)
}

// GetSummary retrieves the summary for a (unit, submission, reviewee)
// triple.
func (e *Engine) GetSummary(ctx context.Context, unitID, submissionKey,
	revieweeKey string) (review.Summary, error) {

	summaryKey, err := review.SummaryKey(
		unitID, submissionKey, revieweeKey,
	)
	if err != nil {
		return review.Summary{}, err
	}

	return e.store.GetSummary(ctx, summaryKey)
}

// ListSteps lists all steps, removed included, owned by the summary for a
// (unit, submission, reviewee) triple.
func (e *Engine) ListSteps(ctx context.Context, unitID, submissionKey,
	revieweeKey string) ([]review.Step, error) {

	summaryKey, err := review.SummaryKey(
		unitID, submissionKey, revieweeKey,
	)
	if err != nil {
		return nil, err
	}

	return e.store.ListStepsBySummary(ctx, summaryKey)
}

// SweepExpired expires every automatically assigned, still-open step older
// than the given window. Steps that race with a concurrent completion or
// removal lose their eligibility mid-sweep; those are skipped rather than
// failing the whole pass. Returns the number of steps expired.
func (e *Engine) SweepExpired(ctx context.Context,
	olderThan time.Duration) (int, error) {

	cutoff := e.cfg.Clock().Add(-olderThan)

	candidates, err := e.store.ListExpirableSteps(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("unable to list expirable steps: %w", err)
	}

	expired := 0
	for _, candidate := range candidates {
		_, err := e.Expire(ctx, candidate.Key)
		switch {
		case err == nil:
			expired++

		case review.IsTransitionError(err),
			review.IsRemovedError(err),
			errors.Is(err, review.ErrStepNotFound):

			e.log.DebugContext(ctx, "sweep skipped contested step",
				"step_key", candidate.Key, "err", err)

		default:
			return expired, err
		}
	}

	e.log.InfoContext(ctx, "expiry sweep finished",
		"candidates", len(candidates), "expired", expired)

	return expired, nil
}
