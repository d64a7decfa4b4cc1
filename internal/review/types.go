package review

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// StepState represents the lifecycle state of a review step.
type StepState string

const (
	// StateAssigned is the initial state of every review step.
	StateAssigned StepState = "assigned"

	// StateCompleted is the terminal state reached when the reviewer
	// submits their feedback.
	StateCompleted StepState = "completed"

	// StateExpired is the terminal state reached when an automatically
	// assigned step is cancelled by the expiry sweep.
	StateExpired StepState = "expired"
)

// String returns the state as a plain string.
func (s StepState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible from the
// state.
func (s StepState) IsTerminal() bool {
	return s == StateCompleted || s == StateExpired
}

// IsValidStepState returns true if the given string names a known state.
func IsValidStepState(state string) bool {
	switch StepState(state) {
	case StateAssigned, StateCompleted, StateExpired:
		return true
	default:
		return false
	}
}

// AssignerKind records whether a step was created by the automated matching
// policy or by a human administrator. Only AUTO-assigned steps may expire.
type AssignerKind string

const (
	// AssignerAuto marks steps created by an automated assignment policy.
	AssignerAuto AssignerKind = "auto"

	// AssignerHuman marks steps created by a human administrator.
	AssignerHuman AssignerKind = "human"
)

// String returns the assigner kind as a plain string.
func (k AssignerKind) String() string {
	return string(k)
}

// IsValidAssignerKind returns true if the given string names a known
// assigner kind.
func IsValidAssignerKind(kind string) bool {
	switch AssignerKind(kind) {
	case AssignerAuto, AssignerHuman:
		return true
	default:
		return false
	}
}

// Submission is an immutable snapshot of a reviewee's work product for a
// unit. It is created once when the reviewee submits and never mutated.
type Submission struct {
	// Key is the submission's identity, assigned at creation.
	Key string

	// UnitID is the unit the work was submitted for.
	UnitID string

	// RevieweeKey identifies the submitting participant.
	RevieweeKey string

	// Contents is the opaque submitted payload.
	Contents string

	// CreateDate is when the submission was recorded.
	CreateDate time.Time
}

// Review is an immutable snapshot of a reviewer's completed feedback. It is
// created once when a step is completed and never mutated.
type Review struct {
	// Key is the review's identity, assigned at creation.
	Key string

	// ReviewerKey identifies the reviewer who wrote the feedback.
	ReviewerKey string

	// Contents is the opaque feedback payload.
	Contents string

	// CreateDate is when the review was recorded.
	CreateDate time.Time
}

// Step is the mutable work-assignment record: one reviewer assigned to
// review one submission.
type Step struct {
	// Key is the deterministic identity derived from the
	// (unit, submission, reviewee, reviewer) tuple.
	Key string

	// SummaryKey references the owning Summary.
	SummaryKey string

	// UnitID is the unit the reviewed work belongs to.
	UnitID string

	// SubmissionKey references the reviewed Submission.
	SubmissionKey string

	// RevieweeKey identifies the participant whose work is reviewed.
	RevieweeKey string

	// ReviewerKey identifies the assigned reviewer.
	ReviewerKey string

	// AssignerKind records who created the assignment. Immutable.
	AssignerKind AssignerKind

	// State is the current lifecycle state.
	State StepState

	// Removed freezes the step against further transitions when set.
	Removed bool

	// ReviewKey references the Review produced on completion. It is set
	// if and only if State == StateCompleted.
	ReviewKey fn.Option[string]

	// CreateDate is when the step was first assigned.
	CreateDate time.Time

	// ChangeDate is updated on every state transition.
	ChangeDate time.Time
}

// Summary is the per-(unit, submission, reviewee) rollup of review steps.
// The three counters always equal the census of non-removed steps owned by
// this summary, broken down by state.
type Summary struct {
	// Key is the deterministic identity derived from the
	// (unit, submission, reviewee) triple.
	Key string

	// UnitID is the unit the reviewed work belongs to.
	UnitID string

	// SubmissionKey references the reviewed Submission.
	SubmissionKey string

	// RevieweeKey identifies the participant whose work is reviewed.
	RevieweeKey string

	// AssignedCount is the number of non-removed steps in StateAssigned.
	AssignedCount int64

	// CompletedCount is the number of non-removed steps in
	// StateCompleted.
	CompletedCount int64

	// ExpiredCount is the number of non-removed steps in StateExpired.
	ExpiredCount int64

	// CreateDate is when the summary was created.
	CreateDate time.Time

	// ChangeDate is updated on every counter change.
	ChangeDate time.Time
}

// TotalCount returns the sum of the three state counters, which equals the
// number of non-removed steps owned by the summary.
func (s Summary) TotalCount() int64 {
	return s.AssignedCount + s.CompletedCount + s.ExpiredCount
}
