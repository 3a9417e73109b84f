package domain

import (
	"fmt"
	"strings"
)

// Connection labels used by condition steps.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// Connection is a directed edge between two steps.
// Label is set on condition edges, Option on multiple-choice edges.
// A connection with neither is unconditional.
type Connection struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Option string `json:"option,omitempty" yaml:"option,omitempty"`
}

// Unconditional reports whether the connection carries no discriminator.
func (c Connection) Unconditional() bool {
	return c.Label == "" && c.Option == ""
}

// MatchesLabel reports whether the connection is the edge for the given condition outcome.
func (c Connection) MatchesLabel(outcome bool) bool {
	want := LabelFalse
	if outcome {
		want = LabelTrue
	}
	return strings.EqualFold(strings.TrimSpace(c.Label), want)
}

// Flow is an authored automation graph.
// The engine treats it as immutable for the duration of an execution call.
type Flow struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Key         string       `json:"key,omitempty" yaml:"key,omitempty"`
	StartStepID string       `json:"start_step_id,omitempty" yaml:"start_step_id,omitempty"`
	Steps       []Step       `json:"steps" yaml:"steps"`
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Step returns the step with the given id.
func (f *Flow) Step(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// StartStep resolves the single start step of the flow.
// It fails with ErrNoStartStep or ErrMultipleStartSteps when the invariant is broken.
func (f *Flow) StartStep() (Step, error) {
	var starts []Step
	for _, s := range f.Steps {
		if s.Kind == KindStart {
			starts = append(starts, s)
		}
	}
	switch len(starts) {
	case 0:
		return Step{}, fmt.Errorf("flow %q: %w", f.ID, ErrNoStartStep)
	case 1:
	default:
		return Step{}, fmt.Errorf("flow %q has %d start steps: %w", f.ID, len(starts), ErrMultipleStartSteps)
	}
	if f.StartStepID != "" && f.StartStepID != starts[0].ID {
		return Step{}, fmt.Errorf("flow %q declares start step %q but its start step is %q: %w",
			f.ID, f.StartStepID, starts[0].ID, ErrNoStartStep)
	}
	return starts[0], nil
}

// Outgoing returns the connections leaving stepID in declaration order.
func (f *Flow) Outgoing(stepID string) []Connection {
	var out []Connection
	for _, c := range f.Connections {
		if c.From == stepID {
			out = append(out, c)
		}
	}
	return out
}
