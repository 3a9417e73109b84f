package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// EvaluateCondition compares the bound variable against the configured literal.
// Numeric operators evaluate to false when either side is not a number.
func EvaluateCondition(cfg domain.ConditionConfig, bindings domain.Bindings) (bool, error) {
	left := bindings.String(cfg.Variable)
	right := cfg.Value

	switch cfg.Operator {
	case domain.OpEquals:
		return left == right, nil
	case domain.OpContains:
		return strings.Contains(left, right), nil
	case domain.OpGreaterThan, domain.OpLessThan:
		l, lok := parseNumber(left)
		r, rok := parseNumber(right)
		if !lok || !rok {
			return false, nil
		}
		if cfg.Operator == domain.OpGreaterThan {
			return l > r, nil
		}
		return l < r, nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownOperator, cfg.Operator)
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
