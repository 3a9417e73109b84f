package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// KeyPhone is the binding holding the contact's WhatsApp number.
	KeyPhone = "phone"
	// KeyName is the binding holding the contact's display name.
	KeyName = "name"
)

// Bindings is the immutable set of variables available to a run.
// Every mutation returns a new value; the receiver is never modified.
type Bindings struct {
	vars map[string]any
}

// NewBindings copies vars into a new Bindings value.
func NewBindings(vars map[string]any) Bindings {
	b := Bindings{vars: make(map[string]any, len(vars))}
	for k, v := range vars {
		b.vars[k] = v
	}
	return b
}

// Get returns the value bound to key.
func (b Bindings) Get(key string) (any, bool) {
	v, ok := b.vars[key]
	return v, ok
}

// String returns the string form of the value bound to key, or "" when unbound.
func (b Bindings) String(key string) string {
	v, ok := b.vars[key]
	if !ok {
		return ""
	}
	return ToString(v)
}

// With returns a copy of b with key bound to value.
func (b Bindings) With(key string, value any) Bindings {
	next := Bindings{vars: make(map[string]any, len(b.vars)+1)}
	for k, v := range b.vars {
		next.vars[k] = v
	}
	next.vars[key] = value
	return next
}

// Merge returns a copy of b overlaid with other.
func (b Bindings) Merge(other Bindings) Bindings {
	next := NewBindings(b.vars)
	for k, v := range other.vars {
		next.vars[k] = v
	}
	return next
}

// Len returns the number of bound variables.
func (b Bindings) Len() int {
	return len(b.vars)
}

// Keys returns the bound names in lexical order.
func (b Bindings) Keys() []string {
	keys := make([]string, 0, len(b.vars))
	for k := range b.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying variables.
func (b Bindings) Map() map[string]any {
	out := make(map[string]any, len(b.vars))
	for k, v := range b.vars {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the bindings as a flat JSON object.
func (b Bindings) MarshalJSON() ([]byte, error) {
	if b.vars == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.vars)
}

// UnmarshalJSON decodes a flat JSON object, keeping numbers as json.Number.
func (b *Bindings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	vars := make(map[string]any)
	if err := dec.Decode(&vars); err != nil {
		return fmt.Errorf("failed to decode bindings: %w", err)
	}
	b.vars = vars
	return nil
}

// ToString coerces a binding value to its textual form for interpolation and comparison.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
