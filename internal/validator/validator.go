// Package validator checks the structure of a compiled flow graph.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// AggregateError represents multiple definition errors found in one flow.
type AggregateError struct {
	FlowID string
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("flow %q: %s", e.FlowID, e.Errors[0].Error())
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("flow %q: found %d errors:\n- %s", e.FlowID, len(e.Errors), strings.Join(msgs, "\n- "))
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidateFlow checks for definition errors: the start step invariant, broken
// connections, ambiguous unconditional edges and discriminators that can never match.
func ValidateFlow(flow *domain.Flow) error {
	var errs []error

	if _, err := flow.StartStep(); err != nil {
		errs = append(errs, err)
	}

	steps := make(map[string]domain.Step, len(flow.Steps))
	for _, s := range flow.Steps {
		steps[s.ID] = s
	}

	for _, c := range flow.Connections {
		if _, ok := steps[c.From]; !ok {
			errs = append(errs, &domain.StepNotFoundError{FlowID: flow.ID, StepID: c.From})
		}
		if _, ok := steps[c.To]; !ok {
			errs = append(errs, &domain.StepNotFoundError{FlowID: flow.ID, StepID: c.To, From: c.From})
		}
	}

	for _, s := range flow.Steps {
		errs = append(errs, checkOutgoing(s, flow.Outgoing(s.ID))...)
	}

	if len(errs) > 0 {
		return &AggregateError{FlowID: flow.ID, Errors: errs}
	}
	return nil
}

func checkOutgoing(s domain.Step, out []domain.Connection) []error {
	var errs []error
	unconditional := 0
	for _, c := range out {
		if c.Unconditional() {
			unconditional++
		}
	}
	if unconditional > 1 && !s.Kind.Branching() {
		errs = append(errs, fmt.Errorf("step %q has %d unconditional outgoing connections", s.ID, unconditional))
	}

	switch cfg := s.Config.(type) {
	case domain.ConditionConfig:
		for _, c := range out {
			if c.Label != "" && !c.MatchesLabel(true) && !c.MatchesLabel(false) {
				errs = append(errs, fmt.Errorf("condition step %q: connection to %q has label %q, want true or false", s.ID, c.To, c.Label))
			}
		}
	case domain.QuestionConfig:
		options := make(map[string]bool, len(cfg.Options))
		for _, o := range cfg.Options {
			options[o.ID] = true
		}
		for _, c := range out {
			if c.Option != "" && !options[c.Option] {
				errs = append(errs, fmt.Errorf("question step %q: connection to %q uses unknown option %q", s.ID, c.To, c.Option))
			}
		}
	}
	return errs
}

// Unreachable returns the ids of steps that cannot be reached from the start step.
// They are not errors, but usually indicate an unfinished edit in the builder.
func Unreachable(flow *domain.Flow) []string {
	start, err := flow.StartStep()
	if err != nil {
		return nil
	}

	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, c := range flow.Outgoing(current) {
			if !visited[c.To] {
				visited[c.To] = true
				queue = append(queue, c.To)
			}
		}
	}

	var out []string
	for _, s := range flow.Steps {
		if !visited[s.ID] {
			out = append(out, s.ID)
		}
	}
	sort.Strings(out)
	return out
}

// IsDefinitionError reports whether err stems from a broken flow definition.
func IsDefinitionError(err error) bool {
	var agg *AggregateError
	return errors.As(err, &agg) ||
		errors.Is(err, domain.ErrNoStartStep) ||
		errors.Is(err, domain.ErrMultipleStartSteps) ||
		errors.Is(err, domain.ErrStepNotFound)
}
