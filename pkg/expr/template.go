package expr

import "strings"

type segment struct {
	text string
	// raw is the placeholder as written, braces included.
	raw  string
	expr bool
}

// scan splits s into literal and placeholder segments.
// An unclosed "{{" is kept as literal text.
func scan(s string) []segment {
	var segs []segment
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+2:], "}}")
		if end < 0 {
			break
		}
		if start > 0 {
			segs = append(segs, segment{text: s[:start]})
		}
		segs = append(segs, segment{
			text: strings.TrimSpace(s[start+2 : start+2+end]),
			raw:  s[start : start+2+end+2],
			expr: true,
		})
		s = s[start+2+end+2:]
	}
	if s != "" {
		segs = append(segs, segment{text: s})
	}
	return segs
}

// HasPlaceholder reports whether s contains at least one "{{ }}" pair.
func HasPlaceholder(s string) bool {
	for _, seg := range scan(s) {
		if seg.expr {
			return true
		}
	}
	return false
}

// Resolve evaluates every placeholder in s. A string made of exactly one
// placeholder yields the native value; mixed content yields a string.
// Resolve never fails: bad placeholders become nil or keep their literal text.
func (e *Evaluator) Resolve(s string, scope Scope) any {
	if !strings.Contains(s, "{{") {
		return s
	}
	if segs := scan(s); len(segs) == 1 && segs[0].expr {
		v, err := e.Evaluate(segs[0].text, scope)
		if err != nil {
			e.logger.Warn("expression failed", "expr", segs[0].text, "error", err)
			return nil
		}
		return v
	}

	var b strings.Builder
	for _, seg := range scan(s) {
		if !seg.expr {
			b.WriteString(seg.text)
			continue
		}
		v, err := e.Evaluate(seg.text, scope)
		if err != nil {
			e.logger.Warn("expression failed", "expr", seg.text, "error", err)
			b.WriteString(seg.raw)
			continue
		}
		b.WriteString(Stringify(v))
	}
	return b.String()
}

// ResolveValue walks maps, slices and strings, resolving every string leaf.
// Containers are copied so v itself is never mutated.
func (e *Evaluator) ResolveValue(v any, scope Scope) any {
	switch t := v.(type) {
	case string:
		return e.Resolve(t, scope)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = e.ResolveValue(val, scope)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.ResolveValue(val, scope)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = e.Resolve(val, scope)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.Resolve(val, scope)
		}
		return out
	}
	return v
}

// ResolveMap is ResolveValue for the common params case.
func (e *Evaluator) ResolveMap(m map[string]any, scope Scope) map[string]any {
	if m == nil {
		return nil
	}
	return e.ResolveValue(m, scope).(map[string]any)
}
