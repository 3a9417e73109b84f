package runtime

import (
	"testing"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition(t *testing.T) {
	b := domain.NewBindings(map[string]any{
		"n":      "5",
		"greet":  "hello world",
		"word":   "abc",
		"age":    34,
		"padded": " 10 ",
	})

	tests := []struct {
		name string
		cfg  domain.ConditionConfig
		want bool
	}{
		{"equals", domain.ConditionConfig{Variable: "n", Operator: domain.OpEquals, Value: "5"}, true},
		{"equals is strict", domain.ConditionConfig{Variable: "n", Operator: domain.OpEquals, Value: "5.0"}, false},
		{"equals coerces numbers", domain.ConditionConfig{Variable: "age", Operator: domain.OpEquals, Value: "34"}, true},
		{"contains", domain.ConditionConfig{Variable: "greet", Operator: domain.OpContains, Value: "world"}, true},
		{"contains miss", domain.ConditionConfig{Variable: "greet", Operator: domain.OpContains, Value: "mars"}, false},
		{"greater than", domain.ConditionConfig{Variable: "age", Operator: domain.OpGreaterThan, Value: "17"}, true},
		{"greater than NaN", domain.ConditionConfig{Variable: "word", Operator: domain.OpGreaterThan, Value: "1"}, false},
		{"less than NaN", domain.ConditionConfig{Variable: "word", Operator: domain.OpLessThan, Value: "1"}, false},
		{"less than", domain.ConditionConfig{Variable: "n", Operator: domain.OpLessThan, Value: "5.5"}, true},
		{"numeric trims", domain.ConditionConfig{Variable: "padded", Operator: domain.OpGreaterThan, Value: "9"}, true},
		{"unbound is empty", domain.ConditionConfig{Variable: "missing", Operator: domain.OpEquals, Value: ""}, true},
		{"unbound never numeric", domain.ConditionConfig{Variable: "missing", Operator: domain.OpLessThan, Value: "1"}, false},
		{"literal NaN never numeric", domain.ConditionConfig{Variable: "n", Operator: domain.OpLessThan, Value: "NaN"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(tt.cfg, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_UnknownOperator(t *testing.T) {
	_, err := EvaluateCondition(domain.ConditionConfig{Variable: "x", Operator: "between"}, domain.Bindings{})
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)
}
