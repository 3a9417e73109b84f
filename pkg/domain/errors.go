package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowNotFound is returned when a flow id or key cannot be resolved.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoStartStep is returned when a flow lacks its start step.
	ErrNoStartStep = errors.New("flow has no start step")

	// ErrMultipleStartSteps is returned when a flow declares more than one start step.
	ErrMultipleStartSteps = errors.New("flow has more than one start step")

	// ErrStepNotFound is returned when execution reaches a step id missing from the graph.
	ErrStepNotFound = errors.New("step not found")

	// ErrNotResumable is returned when continuing a session that is not waiting for input.
	ErrNotResumable = errors.New("session is not resumable")

	// ErrConflict is returned by stores when a save would overwrite a concurrent update.
	// Callers may retry the whole operation.
	ErrConflict = errors.New("session was modified concurrently")

	// ErrStepLimitExceeded is returned when one call executes more steps than allowed.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrUnknownOperator is returned when a condition uses an operator outside the catalog.
	ErrUnknownOperator = errors.New("unknown condition operator")
)

// StepNotFoundError identifies the missing element of a broken flow definition.
type StepNotFoundError struct {
	FlowID string
	StepID string
	// From is the step whose connection pointed at StepID, if any.
	From string
}

func (e *StepNotFoundError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("flow %q: step %q (reached from %q) not found", e.FlowID, e.StepID, e.From)
	}
	return fmt.Sprintf("flow %q: step %q not found", e.FlowID, e.StepID)
}

func (e *StepNotFoundError) Unwrap() error { return ErrStepNotFound }

// NotResumableError reports why a session cannot be continued.
type NotResumableError struct {
	SessionID string
	Status    SessionStatus
	Reason    string
}

func (e *NotResumableError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("session %q is not resumable: %s", e.SessionID, e.Reason)
	}
	return fmt.Sprintf("session %q (%s) is not resumable: %s", e.SessionID, e.Status, e.Reason)
}

func (e *NotResumableError) Unwrap() error { return ErrNotResumable }
