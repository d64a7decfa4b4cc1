package review

import (
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Event is the sealed interface for events that drive a step's lifecycle.
// All event types must implement the unexported isStepEvent method.
type Event interface {
	// isStepEvent seals the interface to prevent external
	// implementations.
	isStepEvent()
}

// Ensure all event types implement Event.
func (CompleteEvent) isStepEvent() {}
func (ExpireEvent) isStepEvent()   {}
func (RemoveEvent) isStepEvent()   {}

// CompleteEvent is applied when the reviewer submits their feedback. The
// review must already have been persisted; its key is attached to the step.
type CompleteEvent struct {
	ReviewKey string
}

// ExpireEvent is applied when the expiry sweep cancels an automatically
// assigned step.
type ExpireEvent struct{}

// RemoveEvent soft-deletes the step, freezing it in its current state.
type RemoveEvent struct{}

// StepDelta describes the mutation to apply to a step record.
type StepDelta struct {
	// State is the step's state after the transition.
	State StepState

	// Removed is the removed flag after the transition.
	Removed bool

	// ReviewKey is the review reference after the transition.
	ReviewKey fn.Option[string]
}

// SummaryDelta describes the counter adjustment to apply to the owning
// summary. Decrement is None for step creation, Increment is None for step
// removal; a state transition carries both.
type SummaryDelta struct {
	// Decrement names the state counter to decrease by one.
	Decrement fn.Option[StepState]

	// Increment names the state counter to increase by one.
	Increment fn.Option[StepState]
}

// ApplyEvent validates an event against the step's current state and returns
// the step and summary deltas to persist. It is a pure function: the hard
// transition rules live here, while the transactional executor only applies
// the returned deltas. Removed steps accept no events at all.
func ApplyEvent(step Step, event Event) (StepDelta, SummaryDelta, error) {
	if step.Removed {
		return StepDelta{}, SummaryDelta{}, &RemovedError{
			StepKey: step.Key,
			Removed: step.Removed,
		}
	}

	switch e := event.(type) {
	case CompleteEvent:
		if step.State != StateAssigned {
			return StepDelta{}, SummaryDelta{}, &TransitionError{
				StepKey: step.Key,
				Before:  step.State,
				After:   StateCompleted,
			}
		}

		stepDelta := StepDelta{
			State:     StateCompleted,
			ReviewKey: fn.Some(e.ReviewKey),
		}
		summaryDelta := SummaryDelta{
			Decrement: fn.Some(StateAssigned),
			Increment: fn.Some(StateCompleted),
		}
		return stepDelta, summaryDelta, nil

	case ExpireEvent:
		// Human-assigned work is never auto-expired, regardless of
		// its current state.
		if step.State != StateAssigned ||
			step.AssignerKind != AssignerAuto {

			return StepDelta{}, SummaryDelta{}, &TransitionError{
				StepKey: step.Key,
				Before:  step.State,
				After:   StateExpired,
			}
		}

		stepDelta := StepDelta{
			State: StateExpired,
		}
		summaryDelta := SummaryDelta{
			Decrement: fn.Some(StateAssigned),
			Increment: fn.Some(StateExpired),
		}
		return stepDelta, summaryDelta, nil

	case RemoveEvent:
		stepDelta := StepDelta{
			State:     step.State,
			Removed:   true,
			ReviewKey: step.ReviewKey,
		}
		summaryDelta := SummaryDelta{
			Decrement: fn.Some(step.State),
		}
		return stepDelta, summaryDelta, nil

	default:
		return StepDelta{}, SummaryDelta{}, NewConstraintError(
			"unknown step event type %T", event,
		)
	}
}
