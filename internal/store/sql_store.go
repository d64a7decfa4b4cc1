package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/peertrack/internal/db"
	"github.com/roasbeef/peertrack/internal/review"
)

// SQLStore implements the Storage interface on top of the SQLite query
// layer. Transactions are run through the retrying TransactionExecutor, so
// transient serialization failures are retried with bounded backoff before
// surfacing to callers.
type SQLStore struct {
	queriesStore

	db *db.BaseDB

	executor *db.TransactionExecutor[*db.Queries]
}

// NewSQLStore creates a new SQLStore wrapping the given base database.
func NewSQLStore(base *db.BaseDB, log *slog.Logger) *SQLStore {
	if log == nil {
		log = slog.Default()
	}

	executor := db.NewTransactionExecutor(
		base, func(tx *sql.Tx) *db.Queries {
			return base.Queries.WithTx(tx)
		},
		log.With("component", "store"),
	)

	return &SQLStore{
		queriesStore: queriesStore{q: base.Queries},
		db:           base,
		executor:     executor,
	}
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.DB.Close()
}

// WithTx executes the given function within a database transaction. The
// callback receives a Storage bound to that transaction.
func (s *SQLStore) WithTx(ctx context.Context,
	f func(ctx context.Context, tx Storage) error) error {

	return s.executor.ExecTx(
		ctx, db.WriteTxOption(), func(q *db.Queries) error {
			txStore := &txSQLStore{
				queriesStore: queriesStore{q: q},
			}
			return f(ctx, txStore)
		},
	)
}

// txSQLStore is a Storage implementation bound to an open transaction.
type txSQLStore struct {
	queriesStore
}

// WithTx joins the enclosing transaction: the callback runs against the same
// transaction-bound queries.
func (t *txSQLStore) WithTx(ctx context.Context,
	f func(ctx context.Context, tx Storage) error) error {

	return f(ctx, t)
}

// queriesStore implements the CRUD surface over any query source, either
// the base database or a transaction-bound Queries instance.
type queriesStore struct {
	q db.Querier
}

// CreateSubmission records a reviewee's submitted work.
func (s queriesStore) CreateSubmission(ctx context.Context,
	params CreateSubmissionParams) (review.Submission, error) {

	row, err := s.q.CreateSubmission(ctx, db.CreateSubmissionParams{
		SubmissionKey: params.SubmissionKey,
		UnitID:        params.UnitID,
		RevieweeKey:   params.RevieweeKey,
		Contents:      params.Contents,
		CreatedAt:     params.CreateDate.Unix(),
	})
	if err != nil {
		return review.Submission{}, err
	}

	return submissionFromRow(row), nil
}

// GetSubmission retrieves a submission by its key.
func (s queriesStore) GetSubmission(ctx context.Context,
	submissionKey string) (review.Submission, error) {

	row, err := s.q.GetSubmission(ctx, submissionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Submission{}, review.ErrSubmissionNotFound
	}
	if err != nil {
		return review.Submission{}, err
	}

	return submissionFromRow(row), nil
}

// CreateReview records a reviewer's completed feedback.
func (s queriesStore) CreateReview(ctx context.Context,
	params CreateReviewParams) (review.Review, error) {

	row, err := s.q.CreateReview(ctx, db.CreateReviewParams{
		ReviewKey:   params.ReviewKey,
		ReviewerKey: params.ReviewerKey,
		Contents:    params.Contents,
		CreatedAt:   params.CreateDate.Unix(),
	})
	if err != nil {
		return review.Review{}, err
	}

	return reviewFromRow(row), nil
}

// GetReview retrieves a review by its key.
func (s queriesStore) GetReview(ctx context.Context,
	reviewKey string) (review.Review, error) {

	row, err := s.q.GetReview(ctx, reviewKey)
	if err != nil {
		return review.Review{}, err
	}

	return reviewFromRow(row), nil
}

// CreateSummary creates a summary with zeroed counters.
func (s queriesStore) CreateSummary(ctx context.Context,
	params CreateSummaryParams) (review.Summary, error) {

	row, err := s.q.CreateReviewSummary(ctx, db.CreateReviewSummaryParams{
		SummaryKey:    params.SummaryKey,
		UnitID:        params.UnitID,
		SubmissionKey: params.SubmissionKey,
		RevieweeKey:   params.RevieweeKey,
		CreatedAt:     params.CreateDate.Unix(),
	})
	if err != nil {
		return review.Summary{}, err
	}

	return summaryFromRow(row), nil
}

// GetSummary retrieves a summary by its key.
func (s queriesStore) GetSummary(ctx context.Context,
	summaryKey string) (review.Summary, error) {

	row, err := s.q.GetReviewSummary(ctx, summaryKey)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Summary{}, review.ErrSummaryNotFound
	}
	if err != nil {
		return review.Summary{}, err
	}

	return summaryFromRow(row), nil
}

// UpdateSummaryCounts overwrites a summary's three state counters.
func (s queriesStore) UpdateSummaryCounts(ctx context.Context,
	params UpdateSummaryCountsParams) error {

	return s.q.UpdateReviewSummaryCounts(
		ctx, db.UpdateReviewSummaryCountsParams{
			SummaryKey:     params.SummaryKey,
			AssignedCount:  params.AssignedCount,
			CompletedCount: params.CompletedCount,
			ExpiredCount:   params.ExpiredCount,
			UpdatedAt:      params.ChangeDate.Unix(),
		},
	)
}

// CreateStep inserts a new step in its initial state.
func (s queriesStore) CreateStep(ctx context.Context,
	params CreateStepParams) (review.Step, error) {

	row, err := s.q.CreateReviewStep(ctx, db.CreateReviewStepParams{
		StepKey:       params.StepKey,
		SummaryKey:    params.SummaryKey,
		UnitID:        params.UnitID,
		SubmissionKey: params.SubmissionKey,
		RevieweeKey:   params.RevieweeKey,
		ReviewerKey:   params.ReviewerKey,
		AssignerKind:  params.AssignerKind.String(),
		State:         params.State.String(),
		CreatedAt:     params.CreateDate.Unix(),
	})
	if err != nil {
		return review.Step{}, err
	}

	return stepFromRow(row), nil
}

// GetStep retrieves a step by its key.
func (s queriesStore) GetStep(ctx context.Context,
	stepKey string) (review.Step, error) {

	row, err := s.q.GetReviewStep(ctx, stepKey)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Step{}, review.ErrStepNotFound
	}
	if err != nil {
		return review.Step{}, err
	}

	return stepFromRow(row), nil
}

// UpdateStep applies a lifecycle mutation to a step record.
func (s queriesStore) UpdateStep(ctx context.Context,
	params UpdateStepParams) error {

	var removed int64
	if params.Removed {
		removed = 1
	}

	reviewKey := sql.NullString{}
	params.ReviewKey.WhenSome(func(key string) {
		reviewKey = sql.NullString{String: key, Valid: true}
	})

	return s.q.UpdateReviewStepState(ctx, db.UpdateReviewStepStateParams{
		StepKey:   params.StepKey,
		State:     params.State.String(),
		Removed:   removed,
		ReviewKey: reviewKey,
		UpdatedAt: params.ChangeDate.Unix(),
	})
}

// CountUnremovedSteps counts non-removed steps system-wide.
func (s queriesStore) CountUnremovedSteps(ctx context.Context) (int64,
	error) {

	return s.q.CountUnremovedReviewSteps(ctx)
}

// CountUnremovedStepsBySummary counts the non-removed steps owned by one
// summary.
func (s queriesStore) CountUnremovedStepsBySummary(ctx context.Context,
	summaryKey string) (int64, error) {

	return s.q.CountUnremovedStepsBySummary(ctx, summaryKey)
}

// ListStepsBySummary lists all steps, removed included, owned by a summary.
func (s queriesStore) ListStepsBySummary(ctx context.Context,
	summaryKey string) ([]review.Step, error) {

	rows, err := s.q.ListReviewStepsBySummary(ctx, summaryKey)
	if err != nil {
		return nil, err
	}

	steps := make([]review.Step, len(rows))
	for i, row := range rows {
		steps[i] = stepFromRow(row)
	}
	return steps, nil
}

// ListExpirableSteps lists auto-assigned, still-open steps created before
// the given cutoff.
func (s queriesStore) ListExpirableSteps(ctx context.Context,
	createdBefore time.Time) ([]review.Step, error) {

	rows, err := s.q.ListExpirableReviewSteps(ctx, createdBefore.Unix())
	if err != nil {
		return nil, err
	}

	steps := make([]review.Step, len(rows))
	for i, row := range rows {
		steps[i] = stepFromRow(row)
	}
	return steps, nil
}

// submissionFromRow converts a db row to the domain type.
func submissionFromRow(row db.Submission) review.Submission {
	return review.Submission{
		Key:         row.SubmissionKey,
		UnitID:      row.UnitID,
		RevieweeKey: row.RevieweeKey,
		Contents:    row.Contents,
		CreateDate:  time.Unix(row.CreatedAt, 0).UTC(),
	}
}

// reviewFromRow converts a db row to the domain type.
func reviewFromRow(row db.Review) review.Review {
	return review.Review{
		Key:         row.ReviewKey,
		ReviewerKey: row.ReviewerKey,
		Contents:    row.Contents,
		CreateDate:  time.Unix(row.CreatedAt, 0).UTC(),
	}
}

// summaryFromRow converts a db row to the domain type.
func summaryFromRow(row db.ReviewSummary) review.Summary {
	return review.Summary{
		Key:            row.SummaryKey,
		UnitID:         row.UnitID,
		SubmissionKey:  row.SubmissionKey,
		RevieweeKey:    row.RevieweeKey,
		AssignedCount:  row.AssignedCount,
		CompletedCount: row.CompletedCount,
		ExpiredCount:   row.ExpiredCount,
		CreateDate:     time.Unix(row.CreatedAt, 0).UTC(),
		ChangeDate:     time.Unix(row.UpdatedAt, 0).UTC(),
	}
}

// stepFromRow converts a db row to the domain type.
func stepFromRow(row db.ReviewStep) review.Step {
	reviewKey := fn.None[string]()
	if row.ReviewKey.Valid {
		reviewKey = fn.Some(row.ReviewKey.String)
	}

	return review.Step{
		Key:           row.StepKey,
		SummaryKey:    row.SummaryKey,
		UnitID:        row.UnitID,
		SubmissionKey: row.SubmissionKey,
		RevieweeKey:   row.RevieweeKey,
		ReviewerKey:   row.ReviewerKey,
		AssignerKind:  review.AssignerKind(row.AssignerKind),
		State:         review.StepState(row.State),
		Removed:       row.Removed != 0,
		ReviewKey:     reviewKey,
		CreateDate:    time.Unix(row.CreatedAt, 0).UTC(),
		ChangeDate:    time.Unix(row.UpdatedAt, 0).UTC(),
	}
}

// Ensure both storage implementations satisfy the interface.
var _ Storage = (*SQLStore)(nil)
var _ Storage = (*txSQLStore)(nil)
