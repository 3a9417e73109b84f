package runtime

import (
	"testing"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func navFlow() *domain.Flow {
	return &domain.Flow{
		ID: "nav",
		Connections: []domain.Connection{
			{From: "q", To: "A", Option: "opt1"},
			{From: "q", To: "fallback-1"},
			{From: "q", To: "B", Option: "opt2"},
			{From: "q", To: "fallback-2"},
			{From: "c", To: "no", Label: "False"},
			{From: "c", To: "plain"},
			{From: "c", To: "yes", Label: " true "},
			{From: "strict", To: "yes", Label: "true"},
			{From: "strict", To: "plain"},
		},
	}
}

func TestNavigator_ByOption(t *testing.T) {
	n := NewNavigator(navFlow(), FallbackUnconditional)

	next, ok := n.NextByOption("q", "opt2")
	assert.True(t, ok)
	assert.Equal(t, "B", next)

	next, _ = n.NextByOption("q", "opt1")
	assert.Equal(t, "A", next)

	// No match: first unconditional in declaration order, never the second.
	next, ok = n.NextByOption("q", "opt9")
	assert.True(t, ok)
	assert.Equal(t, "fallback-1", next)

	next, _ = n.NextByOption("q", "")
	assert.Equal(t, "fallback-1", next)
}

func TestNavigator_Conditional(t *testing.T) {
	n := NewNavigator(navFlow(), FallbackUnconditional)

	next, ok := n.NextConditional("c", true)
	assert.True(t, ok)
	assert.Equal(t, "yes", next, "labels are trimmed and case-insensitive")

	next, _ = n.NextConditional("c", false)
	assert.Equal(t, "no", next)

	next, ok = n.NextConditional("strict", false)
	assert.True(t, ok)
	assert.Equal(t, "plain", next, "falls back to the unconditional edge")
}

func TestNavigator_ConditionalStrict(t *testing.T) {
	n := NewNavigator(navFlow(), FallbackNone)

	next, ok := n.NextConditional("strict", false)
	assert.False(t, ok)
	assert.Empty(t, next)

	next, _ = n.NextConditional("strict", true)
	assert.Equal(t, "yes", next)
}

func TestNavigator_Unconditional(t *testing.T) {
	n := NewNavigator(navFlow(), FallbackUnconditional)

	next, ok := n.NextUnconditional("q")
	assert.True(t, ok)
	assert.Equal(t, "fallback-1", next)

	_, ok = n.NextUnconditional("leaf")
	assert.False(t, ok)
}
