package runtime

import "github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"

// ConditionFallback decides what a condition step does when no labeled edge matches.
type ConditionFallback int

const (
	// FallbackUnconditional follows the first unconditional edge of the step.
	FallbackUnconditional ConditionFallback = iota
	// FallbackNone ends the run as a dead end.
	FallbackNone
)

// Navigator resolves next step ids from the connections of a flow.
// All lookups honor declaration order.
type Navigator struct {
	flow     *domain.Flow
	fallback ConditionFallback
}

// NewNavigator creates a Navigator for flow.
func NewNavigator(flow *domain.Flow, fallback ConditionFallback) Navigator {
	return Navigator{flow: flow, fallback: fallback}
}

// firstUnconditional is the tie-break policy: the first connection without
// label or option, in declaration order.
func firstUnconditional(conns []domain.Connection) (string, bool) {
	for _, c := range conns {
		if c.Unconditional() {
			return c.To, true
		}
	}
	return "", false
}

// NextUnconditional returns the target of the first unconditional edge leaving stepID.
func (n Navigator) NextUnconditional(stepID string) (string, bool) {
	return firstUnconditional(n.flow.Outgoing(stepID))
}

// NextConditional returns the target of the edge labeled with outcome,
// falling back according to the configured policy.
func (n Navigator) NextConditional(stepID string, outcome bool) (string, bool) {
	conns := n.flow.Outgoing(stepID)
	for _, c := range conns {
		if c.Label != "" && c.MatchesLabel(outcome) {
			return c.To, true
		}
	}
	if n.fallback == FallbackNone {
		return "", false
	}
	return firstUnconditional(conns)
}

// NextByOption returns the target of the edge keyed by option, else the first unconditional edge.
func (n Navigator) NextByOption(stepID, option string) (string, bool) {
	conns := n.flow.Outgoing(stepID)
	if option != "" {
		for _, c := range conns {
			if c.Option == option {
				return c.To, true
			}
		}
	}
	return firstUnconditional(conns)
}
