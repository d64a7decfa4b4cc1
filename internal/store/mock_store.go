package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/roasbeef/peertrack/internal/review"
)

// MockStore is an in-memory Storage implementation used in tests and as a
// fallback backend. A single mutex serializes every transaction, and a
// failed transaction callback rolls back by restoring the pre-transaction
// map snapshots.
type MockStore struct {
	mu sync.Mutex

	submissions map[string]review.Submission
	reviews     map[string]review.Review
	summaries   map[string]review.Summary
	steps       map[string]review.Step
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		submissions: make(map[string]review.Submission),
		reviews:     make(map[string]review.Review),
		summaries:   make(map[string]review.Summary),
		steps:       make(map[string]review.Step),
	}
}

// WithTx runs the callback under the store mutex. If the callback errors,
// all mutations made within it are discarded.
func (m *MockStore) WithTx(ctx context.Context,
	f func(ctx context.Context, tx Storage) error) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	snapSubmissions := maps.Clone(m.submissions)
	snapReviews := maps.Clone(m.reviews)
	snapSummaries := maps.Clone(m.summaries)
	snapSteps := maps.Clone(m.steps)

	if err := f(ctx, &txMockStore{store: m}); err != nil {
		m.submissions = snapSubmissions
		m.reviews = snapReviews
		m.summaries = snapSummaries
		m.steps = snapSteps
		return err
	}

	return nil
}

// CreateSubmission records a reviewee's submitted work.
func (m *MockStore) CreateSubmission(ctx context.Context,
	params CreateSubmissionParams) (review.Submission, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSubmission(params)
}

// GetSubmission retrieves a submission by its key.
func (m *MockStore) GetSubmission(ctx context.Context,
	submissionKey string) (review.Submission, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSubmission(submissionKey)
}

// CreateReview records a reviewer's completed feedback.
func (m *MockStore) CreateReview(ctx context.Context,
	params CreateReviewParams) (review.Review, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createReview(params)
}

// GetReview retrieves a review by its key.
func (m *MockStore) GetReview(ctx context.Context,
	reviewKey string) (review.Review, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getReview(reviewKey)
}

// CreateSummary creates a summary with zeroed counters.
func (m *MockStore) CreateSummary(ctx context.Context,
	params CreateSummaryParams) (review.Summary, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSummary(params)
}

// GetSummary retrieves a summary by its key.
func (m *MockStore) GetSummary(ctx context.Context,
	summaryKey string) (review.Summary, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSummary(summaryKey)
}

// UpdateSummaryCounts overwrites a summary's three state counters.
func (m *MockStore) UpdateSummaryCounts(ctx context.Context,
	params UpdateSummaryCountsParams) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSummaryCounts(params)
}

// CreateStep inserts a new step in its initial state.
func (m *MockStore) CreateStep(ctx context.Context,
	params CreateStepParams) (review.Step, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createStep(params)
}

// GetStep retrieves a step by its key.
func (m *MockStore) GetStep(ctx context.Context,
	stepKey string) (review.Step, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getStep(stepKey)
}

// UpdateStep applies a lifecycle mutation to a step record.
func (m *MockStore) UpdateStep(ctx context.Context,
	params UpdateStepParams) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStep(params)
}

// CountUnremovedSteps counts non-removed steps system-wide.
func (m *MockStore) CountUnremovedSteps(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countUnremovedSteps()
}

// CountUnremovedStepsBySummary counts the non-removed steps owned by one
// summary.
func (m *MockStore) CountUnremovedStepsBySummary(ctx context.Context,
	summaryKey string) (int64, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countUnremovedStepsBySummary(summaryKey)
}

// ListStepsBySummary lists all steps, removed included, owned by a summary.
func (m *MockStore) ListStepsBySummary(ctx context.Context,
	summaryKey string) ([]review.Step, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listStepsBySummary(summaryKey)
}

// ListExpirableSteps lists auto-assigned, still-open steps created before
// the given cutoff.
func (m *MockStore) ListExpirableSteps(ctx context.Context,
	createdBefore time.Time) ([]review.Step, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listExpirableSteps(createdBefore)
}

// txMockStore is the transaction-bound view of a MockStore. The enclosing
// WithTx already holds the mutex, so the inner methods go straight to the
// unlocked helpers.
type txMockStore struct {
	store *MockStore
}

// WithTx joins the enclosing transaction.
func (t *txMockStore) WithTx(ctx context.Context,
	f func(ctx context.Context, tx Storage) error) error {

	return f(ctx, t)
}

func (t *txMockStore) CreateSubmission(ctx context.Context,
	params CreateSubmissionParams) (review.Submission, error) {

	return t.store.createSubmission(params)
}

func (t *txMockStore) GetSubmission(ctx context.Context,
	submissionKey string) (review.Submission, error) {

	return t.store.getSubmission(submissionKey)
}

func (t *txMockStore) CreateReview(ctx context.Context,
	params CreateReviewParams) (review.Review, error) {

	return t.store.createReview(params)
}

func (t *txMockStore) GetReview(ctx context.Context,
	reviewKey string) (review.Review, error) {

	return t.store.getReview(reviewKey)
}

func (t *txMockStore) CreateSummary(ctx context.Context,
	params CreateSummaryParams) (review.Summary, error) {

	return t.store.createSummary(params)
}

func (t *txMockStore) GetSummary(ctx context.Context,
	summaryKey string) (review.Summary, error) {

	return t.store.getSummary(summaryKey)
}

func (t *txMockStore) UpdateSummaryCounts(ctx context.Context,
	params UpdateSummaryCountsParams) error {

	return t.store.updateSummaryCounts(params)
}

func (t *txMockStore) CreateStep(ctx context.Context,
	params CreateStepParams) (review.Step, error) {

	return t.store.createStep(params)
}

func (t *txMockStore) GetStep(ctx context.Context,
	stepKey string) (review.Step, error) {

	return t.store.getStep(stepKey)
}

func (t *txMockStore) UpdateStep(ctx context.Context,
	params UpdateStepParams) error {

	return t.store.updateStep(params)
}

func (t *txMockStore) CountUnremovedSteps(ctx context.Context) (int64,
	error) {

	return t.store.countUnremovedSteps()
}

func (t *txMockStore) CountUnremovedStepsBySummary(ctx context.Context,
	summaryKey string) (int64, error) {

	return t.store.countUnremovedStepsBySummary(summaryKey)
}

func (t *txMockStore) ListStepsBySummary(ctx context.Context,
	summaryKey string) ([]review.Step, error) {

	return t.store.listStepsBySummary(summaryKey)
}

func (t *txMockStore) ListExpirableSteps(ctx context.Context,
	createdBefore time.Time) ([]review.Step, error) {

	return t.store.listExpirableSteps(createdBefore)
}

// The unlocked helpers below assume the caller holds m.mu.

func (m *MockStore) createSubmission(
	params CreateSubmissionParams) (review.Submission, error) {

	if _, ok := m.submissions[params.SubmissionKey]; ok {
		return review.Submission{}, review.NewConstraintError(
			"submission %s already exists", params.SubmissionKey,
		)
	}

	sub := review.Submission{
		Key:         params.SubmissionKey,
		UnitID:      params.UnitID,
		RevieweeKey: params.RevieweeKey,
		Contents:    params.Contents,
		CreateDate:  params.CreateDate,
	}
	m.submissions[sub.Key] = sub
	return sub, nil
}

func (m *MockStore) getSubmission(
	submissionKey string) (review.Submission, error) {

	sub, ok := m.submissions[submissionKey]
	if !ok {
		return review.Submission{}, review.ErrSubmissionNotFound
	}
	return sub, nil
}

func (m *MockStore) createReview(
	params CreateReviewParams) (review.Review, error) {

	if _, ok := m.reviews[params.ReviewKey]; ok {
		return review.Review{}, review.NewConstraintError(
			"review %s already exists", params.ReviewKey,
		)
	}

	rev := review.Review{
		Key:         params.ReviewKey,
		ReviewerKey: params.ReviewerKey,
		Contents:    params.Contents,
		CreateDate:  params.CreateDate,
	}
	m.reviews[rev.Key] = rev
	return rev, nil
}

func (m *MockStore) getReview(reviewKey string) (review.Review, error) {
	rev, ok := m.reviews[reviewKey]
	if !ok {
		return review.Review{}, review.NewConstraintError(
			"review %s not found", reviewKey,
		)
	}
	return rev, nil
}

func (m *MockStore) createSummary(
	params CreateSummaryParams) (review.Summary, error) {

	if _, ok := m.summaries[params.SummaryKey]; ok {
		return review.Summary{}, review.NewConstraintError(
			"summary %s already exists", params.SummaryKey,
		)
	}

	summary := review.Summary{
		Key:           params.SummaryKey,
		UnitID:        params.UnitID,
		SubmissionKey: params.SubmissionKey,
		RevieweeKey:   params.RevieweeKey,
		CreateDate:    params.CreateDate,
		ChangeDate:    params.CreateDate,
	}
	m.summaries[summary.Key] = summary
	return summary, nil
}

func (m *MockStore) getSummary(summaryKey string) (review.Summary, error) {
	summary, ok := m.summaries[summaryKey]
	if !ok {
		return review.Summary{}, review.ErrSummaryNotFound
	}
	return summary, nil
}

func (m *MockStore) updateSummaryCounts(
	params UpdateSummaryCountsParams) error {

	summary, ok := m.summaries[params.SummaryKey]
	if !ok {
		return review.ErrSummaryNotFound
	}

	summary.AssignedCount = params.AssignedCount
	summary.CompletedCount = params.CompletedCount
	summary.ExpiredCount = params.ExpiredCount
	summary.ChangeDate = params.ChangeDate
	m.summaries[summary.Key] = summary
	return nil
}

func (m *MockStore) createStep(
	params CreateStepParams) (review.Step, error) {

	if _, ok := m.steps[params.StepKey]; ok {
		return review.Step{}, review.NewConstraintError(
			"step %s already exists", params.StepKey,
		)
	}

	step := review.Step{
		Key:           params.StepKey,
		SummaryKey:    params.SummaryKey,
		UnitID:        params.UnitID,
		SubmissionKey: params.SubmissionKey,
		RevieweeKey:   params.RevieweeKey,
		ReviewerKey:   params.ReviewerKey,
		AssignerKind:  params.AssignerKind,
		State:         params.State,
		CreateDate:    params.CreateDate,
		ChangeDate:    params.CreateDate,
	}
	m.steps[step.Key] = step
	return step, nil
}

func (m *MockStore) getStep(stepKey string) (review.Step, error) {
	step, ok := m.steps[stepKey]
	if !ok {
		return review.Step{}, review.ErrStepNotFound
	}
	return step, nil
}

func (m *MockStore) updateStep(params UpdateStepParams) error {
	step, ok := m.steps[params.StepKey]
	if !ok {
		return review.ErrStepNotFound
	}

	step.State = params.State
	step.Removed = params.Removed
	step.ReviewKey = params.ReviewKey
	step.ChangeDate = params.ChangeDate
	m.steps[step.Key] = step
	return nil
}

func (m *MockStore) countUnremovedSteps() (int64, error) {
	var count int64
	for _, step := range m.steps {
		if !step.Removed {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) countUnremovedStepsBySummary(
	summaryKey string) (int64, error) {

	var count int64
	for _, step := range m.steps {
		if step.SummaryKey == summaryKey && !step.Removed {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) listStepsBySummary(
	summaryKey string) ([]review.Step, error) {

	var steps []review.Step
	for _, step := range m.steps {
		if step.SummaryKey == summaryKey {
			steps = append(steps, step)
		}
	}
	sortSteps(steps)
	return steps, nil
}

func (m *MockStore) listExpirableSteps(
	createdBefore time.Time) ([]review.Step, error) {

	var steps []review.Step
	for _, step := range m.steps {
		if step.Removed || step.State != review.StateAssigned ||
			step.AssignerKind != review.AssignerAuto {

			continue
		}
		if step.CreateDate.Before(createdBefore) {
			steps = append(steps, step)
		}
	}
	sortSteps(steps)
	return steps, nil
}

// sortSteps orders steps by creation time, then key, matching the SQL
// backend's ordering.
func sortSteps(steps []review.Step) {
	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].CreateDate.Equal(steps[j].CreateDate) {
			return steps[i].CreateDate.Before(steps[j].CreateDate)
		}
		return steps[i].Key < steps[j].Key
	})
}

var _ Storage = (*MockStore)(nil)
var _ Storage = (*txMockStore)(nil)
