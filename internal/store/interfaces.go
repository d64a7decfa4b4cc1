package store

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/review"
)

// SubmissionStore handles persistence of immutable submission snapshots.
type SubmissionStore interface {
	// CreateSubmission records a reviewee's submitted work.
	CreateSubmission(ctx context.Context,
		params CreateSubmissionParams) (review.Submission, error)

	// GetSubmission retrieves a submission by its key.
	GetSubmission(ctx context.Context,
		submissionKey string) (review.Submission, error)
}

// ReviewStore handles persistence of immutable review snapshots.
type ReviewStore interface {
	// CreateReview records a reviewer's completed feedback.
	CreateReview(ctx context.Context,
		params CreateReviewParams) (review.Review, error)

	// GetReview retrieves a review by its key.
	GetReview(ctx context.Context,
		reviewKey string) (review.Review, error)
}

// SummaryStore handles persistence of review summary rollups.
type SummaryStore interface {
	// CreateSummary creates a summary with zeroed counters.
	CreateSummary(ctx context.Context,
		params CreateSummaryParams) (review.Summary, error)

	// GetSummary retrieves a summary by its key. Returns
	// review.ErrSummaryNotFound if no record exists.
	GetSummary(ctx context.Context,
		summaryKey string) (review.Summary, error)

	// UpdateSummaryCounts overwrites a summary's three state counters.
	UpdateSummaryCounts(ctx context.Context,
		params UpdateSummaryCountsParams) error
}

// StepStore handles persistence of the mutable review step records.
type StepStore interface {
	// CreateStep inserts a new step in its initial state.
	CreateStep(ctx context.Context,
		params CreateStepParams) (review.Step, error)

	// GetStep retrieves a step by its key. Returns
	// review.ErrStepNotFound if no record exists.
	GetStep(ctx context.Context, stepKey string) (review.Step, error)

	// UpdateStep applies a lifecycle mutation to a step record.
	UpdateStep(ctx context.Context, params UpdateStepParams) error

	// CountUnremovedSteps counts non-removed steps system-wide.
	CountUnremovedSteps(ctx context.Context) (int64, error)

	// CountUnremovedStepsBySummary counts the non-removed steps owned by
	// one summary.
	CountUnremovedStepsBySummary(ctx context.Context,
		summaryKey string) (int64, error)

	// ListStepsBySummary lists all steps, removed included, owned by a
	// summary.
	ListStepsBySummary(ctx context.Context,
		summaryKey string) ([]review.Step, error)

	// ListExpirableSteps lists auto-assigned, still-open steps created
	// before the given cutoff.
	ListExpirableSteps(ctx context.Context,
		createdBefore time.Time) ([]review.Step, error)
}

// Storage is the combined interface all storage backends must implement.
type Storage interface {
	SubmissionStore
	ReviewStore
	SummaryStore
	StepStore

	// WithTx executes the given function within a single storage
	// transaction. The callback receives a Storage bound to that
	// transaction; calling WithTx on it joins the enclosing transaction.
	WithTx(ctx context.Context,
		f func(ctx context.Context, tx Storage) error) error
}

// CreateSubmissionParams holds the inputs for CreateSubmission.
type CreateSubmissionParams struct {
	SubmissionKey string
	UnitID        string
	RevieweeKey   string
	Contents      string
	CreateDate    time.Time
}

// CreateReviewParams holds the inputs for CreateReview.
type CreateReviewParams struct {
	ReviewKey   string
	ReviewerKey string
	Contents    string
	CreateDate  time.Time
}

// CreateSummaryParams holds the inputs for CreateSummary.
type CreateSummaryParams struct {
	SummaryKey    string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	CreateDate    time.Time
}

// UpdateSummaryCountsParams holds the inputs for UpdateSummaryCounts.
type UpdateSummaryCountsParams struct {
	SummaryKey     string
	AssignedCount  int64
	CompletedCount int64
	ExpiredCount   int64
	ChangeDate     time.Time
}

// CreateStepParams holds the inputs for CreateStep.
type CreateStepParams struct {
	StepKey       string
	SummaryKey    string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	ReviewerKey   string
	AssignerKind  review.AssignerKind
	State         review.StepState
	CreateDate    time.Time
}

// UpdateStepParams holds the inputs for UpdateStep.
type UpdateStepParams struct {
	StepKey    string
	State      review.StepState
	Removed    bool
	ReviewKey  fn.Option[string]
	ChangeDate time.Time
}
