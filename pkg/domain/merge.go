package domain

import (
	"encoding/json"
	"fmt"
)

// DeepMerge combines src into a copy of dst.
// Nested objects merge key by key; arrays and scalars from src replace dst wholesale.
// Neither input is mutated.
func DeepMerge(dst, src map[string]any) map[string]any {
	out := CloneMap(dst)
	if out == nil {
		out = make(map[string]any, len(src))
	}
	for k, sv := range src {
		sm, srcIsMap := sv.(map[string]any)
		dm, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = DeepMerge(dm, sm)
			continue
		}
		out[k] = CloneValue(sv)
	}
	return out
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices; other values are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = CloneMap(e)
		}
		return out
	default:
		return v
	}
}

// ToMap converts a node (or any JSON-tagged value) into its wire map form.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %T into map: %w", v, err)
	}
	return out, nil
}

// FromMap decodes a wire map back into a node (or any JSON-tagged value).
func FromMap(m map[string]any, out any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode map: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode map into %T: %w", out, err)
	}
	return nil
}

// CloneNode returns a deep copy of n through its wire form.
func CloneNode(n *Node) (*Node, error) {
	m, err := ToMap(n)
	if err != nil {
		return nil, err
	}
	var out Node
	if err := FromMap(m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
