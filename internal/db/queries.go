package db

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql methods the query layer needs. Both
// *sql.DB and *sql.Tx satisfy it, which is what lets the same queries run
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New creates a Queries instance bound to the given database handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the hand-written SQL statements for the peer review schema.
type Queries struct {
	db DBTX
}

// WithTx returns a Queries instance bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Submission is the stored form of a reviewee's submitted work.
type Submission struct {
	SubmissionKey string
	UnitID        string
	RevieweeKey   string
	Contents      string
	CreatedAt     int64
}

// Review is the stored form of a reviewer's completed feedback.
type Review struct {
	ReviewKey   string
	ReviewerKey string
	Contents    string
	CreatedAt   int64
}

// ReviewSummary is the stored per-(unit, submission, reviewee) counter
// rollup.
type ReviewSummary struct {
	SummaryKey     string
	UnitID         string
	SubmissionKey  string
	RevieweeKey    string
	AssignedCount  int64
	CompletedCount int64
	ExpiredCount   int64
	CreatedAt      int64
	UpdatedAt      int64
}

// ReviewStep is the stored work-assignment record.
type ReviewStep struct {
	StepKey       string
	SummaryKey    string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	ReviewerKey   string
	AssignerKind  string
	State         string
	Removed       int64
	ReviewKey     sql.NullString
	CreatedAt     int64
	UpdatedAt     int64
}

// CreateSubmissionParams holds the inputs for CreateSubmission.
type CreateSubmissionParams struct {
	SubmissionKey string
	UnitID        string
	RevieweeKey   string
	Contents      string
	CreatedAt     int64
}

const createSubmission = `
INSERT INTO submissions (submission_key, unit_id, reviewee_key, contents, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING submission_key, unit_id, reviewee_key, contents, created_at
`

// CreateSubmission inserts a new submission record.
func (q *Queries) CreateSubmission(ctx context.Context,
	arg CreateSubmissionParams) (Submission, error) {

	row := q.db.QueryRowContext(
		ctx, createSubmission, arg.SubmissionKey, arg.UnitID,
		arg.RevieweeKey, arg.Contents, arg.CreatedAt,
	)

	var s Submission
	err := row.Scan(
		&s.SubmissionKey, &s.UnitID, &s.RevieweeKey, &s.Contents,
		&s.CreatedAt,
	)
	return s, err
}

const getSubmission = `
SELECT submission_key, unit_id, reviewee_key, contents, created_at
FROM submissions
WHERE submission_key = ?
`

// GetSubmission retrieves a submission by its key.
func (q *Queries) GetSubmission(ctx context.Context,
	submissionKey string) (Submission, error) {

	row := q.db.QueryRowContext(ctx, getSubmission, submissionKey)

	var s Submission
	err := row.Scan(
		&s.SubmissionKey, &s.UnitID, &s.RevieweeKey, &s.Contents,
		&s.CreatedAt,
	)
	return s, err
}

// CreateReviewParams holds the inputs for CreateReview.
type CreateReviewParams struct {
	ReviewKey   string
	ReviewerKey string
	Contents    string
	CreatedAt   int64
}

const createReview = `
INSERT INTO reviews (review_key, reviewer_key, contents, created_at)
VALUES (?, ?, ?, ?)
RETURNING review_key, reviewer_key, contents, created_at
`

// CreateReview inserts a new review record.
func (q *Queries) CreateReview(ctx context.Context,
	arg CreateReviewParams) (Review, error) {

	row := q.db.QueryRowContext(
		ctx, createReview, arg.ReviewKey, arg.ReviewerKey,
		arg.Contents, arg.CreatedAt,
	)

	var r Review
	err := row.Scan(
		&r.ReviewKey, &r.ReviewerKey, &r.Contents, &r.CreatedAt,
	)
	return r, err
}

const getReview = `
SELECT review_key, reviewer_key, contents, created_at
FROM reviews
WHERE review_key = ?
`

// GetReview retrieves a review by its key.
func (q *Queries) GetReview(ctx context.Context,
	reviewKey string) (Review, error) {

	row := q.db.QueryRowContext(ctx, getReview, reviewKey)

	var r Review
	err := row.Scan(
		&r.ReviewKey, &r.ReviewerKey, &r.Contents, &r.CreatedAt,
	)
	return r, err
}

// CreateReviewSummaryParams holds the inputs for CreateReviewSummary.
type CreateReviewSummaryParams struct {
	SummaryKey    string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	CreatedAt     int64
}

const createReviewSummary = `
INSERT INTO review_summaries (
    summary_key, unit_id, submission_key, reviewee_key,
    assigned_count, completed_count, expired_count, created_at, updated_at
)
VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?)
RETURNING summary_key, unit_id, submission_key, reviewee_key,
    assigned_count, completed_count, expired_count, created_at, updated_at
`

// CreateReviewSummary inserts a new summary with zeroed counters.
func (q *Queries) CreateReviewSummary(ctx context.Context,
	arg CreateReviewSummaryParams) (ReviewSummary, error) {

	row := q.db.QueryRowContext(
		ctx, createReviewSummary, arg.SummaryKey, arg.UnitID,
		arg.SubmissionKey, arg.RevieweeKey, arg.CreatedAt,
		arg.CreatedAt,
	)

	return scanReviewSummary(row)
}

const getReviewSummary = `
SELECT summary_key, unit_id, submission_key, reviewee_key,
    assigned_count, completed_count, expired_count, created_at, updated_at
FROM review_summaries
WHERE summary_key = ?
`

// GetReviewSummary retrieves a summary by its key.
func (q *Queries) GetReviewSummary(ctx context.Context,
	summaryKey string) (ReviewSummary, error) {

	row := q.db.QueryRowContext(ctx, getReviewSummary, summaryKey)
	return scanReviewSummary(row)
}

// UpdateReviewSummaryCountsParams holds the inputs for
// UpdateReviewSummaryCounts.
type UpdateReviewSummaryCountsParams struct {
	SummaryKey     string
	AssignedCount  int64
	CompletedCount int64
	ExpiredCount   int64
	UpdatedAt      int64
}

const updateReviewSummaryCounts = `
UPDATE review_summaries
SET assigned_count = ?, completed_count = ?, expired_count = ?, updated_at = ?
WHERE summary_key = ?
`

// UpdateReviewSummaryCounts overwrites the three state counters of a
// summary.
func (q *Queries) UpdateReviewSummaryCounts(ctx context.Context,
	arg UpdateReviewSummaryCountsParams) error {

	_, err := q.db.ExecContext(
		ctx, updateReviewSummaryCounts, arg.AssignedCount,
		arg.CompletedCount, arg.ExpiredCount, arg.UpdatedAt,
		arg.SummaryKey,
	)
	return err
}

// CreateReviewStepParams holds the inputs for CreateReviewStep.
type CreateReviewStepParams struct {
	StepKey       string
	SummaryKey    string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	ReviewerKey   string
	AssignerKind  string
	State         string
	CreatedAt     int64
}

const createReviewStep = `
INSERT INTO review_steps (
    step_key, summary_key, unit_id, submission_key, reviewee_key,
    reviewer_key, assigner_kind, state, removed, review_key,
    created_at, updated_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
RETURNING step_key, summary_key, unit_id, submission_key, reviewee_key,
    reviewer_key, assigner_kind, state, removed, review_key,
    created_at, updated_at
`

// CreateReviewStep inserts a new review step.
func (q *Queries) CreateReviewStep(ctx context.Context,
	arg CreateReviewStepParams) (ReviewStep, error) {

	row := q.db.QueryRowContext(
		ctx, createReviewStep, arg.StepKey, arg.SummaryKey,
		arg.UnitID, arg.SubmissionKey, arg.RevieweeKey,
		arg.ReviewerKey, arg.AssignerKind, arg.State, arg.CreatedAt,
		arg.CreatedAt,
	)

	return scanReviewStep(row)
}

const getReviewStep = `
SELECT step_key, summary_key, unit_id, submission_key, reviewee_key,
    reviewer_key, assigner_kind, state, removed, review_key,
    created_at, updated_at
FROM review_steps
WHERE step_key = ?
`

// GetReviewStep retrieves a review step by its key.
func (q *Queries) GetReviewStep(ctx context.Context,
	stepKey string) (ReviewStep, error) {

	row := q.db.QueryRowContext(ctx, getReviewStep, stepKey)
	return scanReviewStep(row)
}

// UpdateReviewStepStateParams holds the inputs for UpdateReviewStepState.
type UpdateReviewStepStateParams struct {
	StepKey   string
	State     string
	Removed   int64
	ReviewKey sql.NullString
	UpdatedAt int64
}

const updateReviewStepState = `
UPDATE review_steps
SET state = ?, removed = ?, review_key = ?, updated_at = ?
WHERE step_key = ?
`

// UpdateReviewStepState applies a lifecycle transition to a step record.
func (q *Queries) UpdateReviewStepState(ctx context.Context,
	arg UpdateReviewStepStateParams) error {

	_, err := q.db.ExecContext(
		ctx, updateReviewStepState, arg.State, arg.Removed,
		arg.ReviewKey, arg.UpdatedAt, arg.StepKey,
	)
	return err
}

const countUnremovedReviewSteps = `
SELECT COUNT(*) FROM review_steps WHERE removed = 0
`

// CountUnremovedReviewSteps counts non-removed steps system-wide. Used by
// the admission-control cap.
func (q *Queries) CountUnremovedReviewSteps(ctx context.Context) (int64,
	error) {

	row := q.db.QueryRowContext(ctx, countUnremovedReviewSteps)

	var count int64
	err := row.Scan(&count)
	return count, err
}

const countUnremovedStepsBySummary = `
SELECT COUNT(*) FROM review_steps WHERE summary_key = ? AND removed = 0
`

// CountUnremovedStepsBySummary counts the non-removed steps owned by one
// summary.
func (q *Queries) CountUnremovedStepsBySummary(ctx context.Context,
	summaryKey string) (int64, error) {

	row := q.db.QueryRowContext(
		ctx, countUnremovedStepsBySummary, summaryKey,
	)

	var count int64
	err := row.Scan(&count)
	return count, err
}

const listReviewStepsBySummary = `
SELECT step_key, summary_key, unit_id, submission_key, reviewee_key,
    reviewer_key, assigner_kind, state, removed, review_key,
    created_at, updated_at
FROM review_steps
WHERE summary_key = ?
ORDER BY created_at, step_key
`

// ListReviewStepsBySummary lists all steps, removed included, owned by a
// summary.
func (q *Queries) ListReviewStepsBySummary(ctx context.Context,
	summaryKey string) ([]ReviewStep, error) {

	rows, err := q.db.QueryContext(
		ctx, listReviewStepsBySummary, summaryKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReviewSteps(rows)
}

const listExpirableReviewSteps = `
SELECT step_key, summary_key, unit_id, submission_key, reviewee_key,
    reviewer_key, assigner_kind, state, removed, review_key,
    created_at, updated_at
FROM review_steps
WHERE removed = 0 AND state = 'assigned' AND assigner_kind = 'auto'
    AND created_at < ?
ORDER BY created_at, step_key
`

// ListExpirableReviewSteps lists automatically assigned, still-open steps
// created before the given cutoff. These are the sweep candidates.
func (q *Queries) ListExpirableReviewSteps(ctx context.Context,
	createdBefore int64) ([]ReviewStep, error) {

	rows, err := q.db.QueryContext(
		ctx, listExpirableReviewSteps, createdBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReviewSteps(rows)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewSummary(row rowScanner) (ReviewSummary, error) {
	var s ReviewSummary
	err := row.Scan(
		&s.SummaryKey, &s.UnitID, &s.SubmissionKey, &s.RevieweeKey,
		&s.AssignedCount, &s.CompletedCount, &s.ExpiredCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func scanReviewStep(row rowScanner) (ReviewStep, error) {
	var s ReviewStep
	err := row.Scan(
		&s.StepKey, &s.SummaryKey, &s.UnitID, &s.SubmissionKey,
		&s.RevieweeKey, &s.ReviewerKey, &s.AssignerKind, &s.State,
		&s.Removed, &s.ReviewKey, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func collectReviewSteps(rows *sql.Rows) ([]ReviewStep, error) {
	var steps []ReviewStep
	for rows.Next() {
		step, err := scanReviewStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}
