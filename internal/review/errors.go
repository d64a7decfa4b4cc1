package review

import (
	"errors"
	"fmt"
)

var (
	// ErrStepNotFound is returned when an operation references a step key
	// with no stored record.
	ErrStepNotFound = errors.New("review step not found")

	// ErrSummaryNotFound is returned when an operation references a
	// summary key with no stored record.
	ErrSummaryNotFound = errors.New("review summary not found")

	// ErrSubmissionNotFound is returned when a submission key has no
	// stored record.
	ErrSubmissionNotFound = errors.New("submission not found")
)

// ConstraintError reports an invariant violation detected in stored data,
// such as a counter that would be driven below zero. It indicates data
// corruption and is never silently corrected.
type ConstraintError struct {
	Reason string
}

// Error returns the error message.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violated: %s", e.Reason)
}

// NewConstraintError creates a ConstraintError with a formatted reason.
func NewConstraintError(format string, args ...any) *ConstraintError {
	return &ConstraintError{Reason: fmt.Sprintf(format, args...)}
}

// IsConstraintError returns true if the given error is a ConstraintError.
func IsConstraintError(err error) bool {
	var constraintErr *ConstraintError
	return errors.As(err, &constraintErr)
}

// NotAssignableError reports an admission-control rejection: creating one
// more step would exceed the configured cap on non-removed steps. The caller
// may retry later or fall back to a different policy.
type NotAssignableError struct {
	// Count is the current number of non-removed steps.
	Count int64

	// Limit is the configured cap.
	Limit int64
}

// Error returns the error message.
func (e *NotAssignableError) Error() string {
	return fmt.Sprintf("cannot assign review step: %d non-removed steps "+
		"at cap %d", e.Count, e.Limit)
}

// IsNotAssignableError returns true if the given error is a
// NotAssignableError.
func IsNotAssignableError(err error) bool {
	var notAssignable *NotAssignableError
	return errors.As(err, &notAssignable)
}

// RemovedError reports an attempted operation on a soft-deleted step. It
// carries the stale removed value observed at the time of the attempt.
type RemovedError struct {
	// StepKey identifies the step the operation targeted.
	StepKey string

	// Removed is the removed flag observed on the step.
	Removed bool
}

// Error returns the error message.
func (e *RemovedError) Error() string {
	return fmt.Sprintf("review step %s is removed (removed=%v)",
		e.StepKey, e.Removed)
}

// IsRemovedError returns true if the given error is a RemovedError.
func IsRemovedError(err error) bool {
	var removedErr *RemovedError
	return errors.As(err, &removedErr)
}

// TransitionError reports an illegal state transition attempt. It carries
// the observed state and the state the caller attempted to reach.
type TransitionError struct {
	// StepKey identifies the step the transition targeted.
	StepKey string

	// Before is the state the step was in when the transition was
	// attempted.
	Before StepState

	// After is the state the transition would have produced.
	After StepState
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition for step %s: %s -> %s",
		e.StepKey, e.Before, e.After)
}

// IsTransitionError returns true if the given error is a TransitionError.
func IsTransitionError(err error) bool {
	var transitionErr *TransitionError
	return errors.As(err, &transitionErr)
}

// ReviewProcessAlreadyStartedError reports an attempt to start a review
// process for a submission whose process is already underway.
type ReviewProcessAlreadyStartedError struct {
	// SummaryKey identifies the existing summary.
	SummaryKey string
}

// Error returns the error message.
func (e *ReviewProcessAlreadyStartedError) Error() string {
	return fmt.Sprintf("review process already started: summary %s "+
		"exists", e.SummaryKey)
}

// IsReviewProcessAlreadyStartedError returns true if the given error is a
// ReviewProcessAlreadyStartedError.
func IsReviewProcessAlreadyStartedError(err error) bool {
	var startedErr *ReviewProcessAlreadyStartedError
	return errors.As(err, &startedErr)
}
