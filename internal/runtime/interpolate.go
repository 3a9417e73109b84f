package runtime

import (
	"regexp"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Interpolate replaces every {{ key }} in template with the string form of the bound value.
// Unbound keys are left untouched, placeholder included.
func Interpolate(template string, bindings domain.Bindings) string {
	if template == "" {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		v, ok := bindings.Get(key)
		if !ok {
			return match
		}
		return domain.ToString(v)
	})
}

// InterpolateMap interpolates every value of vars.
func InterpolateMap(vars map[string]string, bindings domain.Bindings) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = Interpolate(v, bindings)
	}
	return out
}
