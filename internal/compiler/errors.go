package compiler

import (
	"fmt"
	"strings"
)

// StepError reports a configuration problem of one step.
type StepError struct {
	StepID string
	Kind   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (%s): %v", e.StepID, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// AggregateError represents multiple compilation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d compilation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }
