package db

import (
	"context"
)

// Querier is the full set of query methods the peer review schema supports.
// *Queries is the canonical implementation; the interface exists so stores
// can be parameterized over a transaction-bound query source.
type Querier interface {
	CreateSubmission(ctx context.Context,
		arg CreateSubmissionParams) (Submission, error)
	GetSubmission(ctx context.Context,
		submissionKey string) (Submission, error)

	CreateReview(ctx context.Context,
		arg CreateReviewParams) (Review, error)
	GetReview(ctx context.Context, reviewKey string) (Review, error)

	CreateReviewSummary(ctx context.Context,
		arg CreateReviewSummaryParams) (ReviewSummary, error)
	GetReviewSummary(ctx context.Context,
		summaryKey string) (ReviewSummary, error)
	UpdateReviewSummaryCounts(ctx context.Context,
		arg UpdateReviewSummaryCountsParams) error

	CreateReviewStep(ctx context.Context,
		arg CreateReviewStepParams) (ReviewStep, error)
	GetReviewStep(ctx context.Context, stepKey string) (ReviewStep, error)
	UpdateReviewStepState(ctx context.Context,
		arg UpdateReviewStepStateParams) error
	CountUnremovedReviewSteps(ctx context.Context) (int64, error)
	CountUnremovedStepsBySummary(ctx context.Context,
		summaryKey string) (int64, error)
	ListReviewStepsBySummary(ctx context.Context,
		summaryKey string) ([]ReviewStep, error)
	ListExpirableReviewSteps(ctx context.Context,
		createdBefore int64) ([]ReviewStep, error)
}

var _ Querier = (*Queries)(nil)
