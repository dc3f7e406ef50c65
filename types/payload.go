package types

import "encoding/json"

// Payload is the opaque structured data passed to agents as task input and
// returned as task output. The core never interprets payload contents beyond
// the typed accessors below, which condition predicates use.
type Payload map[string]any

// Number retrieves a numeric value by key. It accepts the numeric types that
// commonly survive JSON round-trips.
func (p Payload) Number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String retrieves a string value by key.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool retrieves a boolean value by key.
func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Clone returns a shallow copy of the payload. Nested values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new payload with entries from other overlaying p.
func (p Payload) Merge(other Payload) Payload {
	out := p.Clone()
	if out == nil {
		out = make(Payload, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
