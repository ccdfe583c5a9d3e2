package runtime

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
)

// ApplyOverrides computes the effective node from base.
// Precedence, lowest to highest: base < live patch < responsive[breakpoint] < locale[locale].
// Objects merge key by key and arrays are replaced. base is never mutated.
func ApplyOverrides(base *domain.Node, breakpoint, locale string, live map[string]any) (*domain.Node, error) {
	m, err := domain.ToMap(base)
	if err != nil {
		return nil, err
	}
	if len(live) > 0 {
		m = domain.DeepMerge(m, live)
	}
	if breakpoint != "" {
		if patch, ok := base.ResponsiveOverrides[breakpoint]; ok {
			m = domain.DeepMerge(m, patch)
		}
	}
	if locale != "" {
		if patch, ok := base.LocaleOverrides[locale]; ok {
			m = domain.DeepMerge(m, patch)
		}
	}

	var eff domain.Node
	if err := domain.FromMap(m, &eff); err != nil {
		return nil, fmt.Errorf("node %s: %w", base.ID, err)
	}
	// Overrides address the node, they never rename it.
	eff.ID = base.ID
	return &eff, nil
}

// resolveSources resolves templated data requirement sources against the
// page-wide scopes only. Node-level data does not exist yet at this point.
func (r *Resolver) resolveSources(n *domain.Node, global *domain.EvaluationContext) {
	for i, req := range n.DataRequirements {
		raw, err := domain.ToMap(req.Source)
		if err != nil {
			continue
		}
		resolved, ok := r.eval.ResolveValue(raw, global).(map[string]any)
		if !ok {
			continue
		}
		var src domain.DataSource
		if err := domain.FromMap(resolved, &src); err != nil {
			r.logger.Warn("data source did not resolve to a valid shape",
				"node_id", n.ID, "key", req.Key, "error", err)
			continue
		}
		n.DataRequirements[i].Source = src
	}
}

// references reports whether any binding of n reads one of the named roots.
func (r *Resolver) references(n *domain.Node, roots ...string) bool {
	found := false
	visit := func(s string) {
		if found || !expr.HasPlaceholder(s) {
			return
		}
		for _, ref := range r.eval.References(s) {
			for _, root := range roots {
				if ref == root {
					found = true
				}
			}
		}
	}
	walkStrings(n.Params, visit)
	if n.Visibility != nil {
		if expr.HasPlaceholder(n.Visibility.Expression) {
			visit(n.Visibility.Expression)
		} else if n.Visibility.Expression != "" {
			visit("{{" + n.Visibility.Expression + "}}")
		}
	}
	if n.Repeater != nil {
		src := n.Repeater.Source
		if !expr.HasPlaceholder(src) {
			src = "{{" + src + "}}"
		}
		visit(src)
	}
	return found
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	case []any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	}
}
