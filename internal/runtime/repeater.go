package runtime

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// repeatedChild is one clone produced by a repeater, with its item scope.
type repeatedChild struct {
	node *domain.Node
	ctx  domain.EvaluationContext
}

// Items resolves a repeater's meta-fields (source, filter, sort, limit)
// against scope and returns the surviving items. The template is not touched.
// ok is false when the source is not a collection.
func (r *Resolver) Items(cfg *domain.RepeaterConfig, scope expr.Scope, locale string) ([]any, bool) {
	src := r.expression(cfg.Source, scope)
	items, ok := expr.AsSlice(src)
	if !ok {
		r.logger.Warn("repeater source is not a collection", "source", cfg.Source, "type", typeName(src))
		return nil, false
	}
	items = append([]any(nil), items...)

	if f := cfg.Filter; f != nil {
		want := r.eval.ResolveValue(f.Value, scope)
		kept := items[:0]
		for _, item := range items {
			if r.conds.Match(f.Operator, field(item, f.Field), want) {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	if s := cfg.Sort; s != nil && s.Field != "" {
		sortItems(items, s, locale)
	}

	if n, ok := r.limit(cfg.Limit, scope); ok && n < len(items) {
		items = items[:n]
	}
	return items, true
}

func field(item any, path string) any {
	if path == "" {
		return item
	}
	return expr.Get(item, path, nil)
}

func (r *Resolver) limit(v any, scope expr.Scope) (int, bool) {
	if s, ok := v.(string); ok {
		v = r.expression(s, scope)
	}
	if v == nil {
		return 0, false
	}
	n, ok := expr.ToNumber(v)
	if !ok || n <= 0 || math.IsNaN(n) {
		return 0, false
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(n), true
}

// sortItems orders items by field: numerically when both values are numbers,
// by locale collation otherwise. nil values always sort last.
func sortItems(items []any, s *domain.RepeaterSort, locale string) {
	dir := 1
	if strings.EqualFold(s.Direction, "desc") {
		dir = -1
	}
	tag := language.Und
	if locale != "" {
		tag = language.Make(locale)
	}
	col := collate.New(tag)

	sort.SliceStable(items, func(i, j int) bool {
		a, b := field(items[i], s.Field), field(items[j], s.Field)
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		var c int
		if expr.IsNumber(a) && expr.IsNumber(b) {
			x, _ := expr.ToNumber(a)
			y, _ := expr.ToNumber(b)
			switch {
			case x < y:
				c = -1
			case x > y:
				c = 1
			}
		} else {
			c = col.CompareString(expr.Stringify(a), expr.Stringify(b))
		}
		return c*dir < 0
	})
}

// RepeatedID builds the deterministic id of the index-th child of parentID.
// ancestorID is the id of the enclosing repeated item, used with includeAncestors.
func RepeatedID(strategy *domain.IDStrategy, parentID, ancestorID string, index int) string {
	sep := domain.DefaultIDSeparator
	prefix := ""
	base := parentID
	if strategy != nil {
		if strategy.Separator != "" {
			sep = strategy.Separator
		}
		prefix = strategy.Prefix
		if strategy.IncludeAncestors && ancestorID != "" {
			base = ancestorID + sep + parentID
		}
	}
	return prefix + base + sep + strconv.Itoa(index)
}

// expand clones the unresolved template once per surviving item.
func (r *Resolver) expand(container *domain.Node, c domain.EvaluationContext, containerState map[string]any, locale string) []repeatedChild {
	cfg := container.Repeater
	items, ok := r.Items(cfg, &c, locale)
	if !ok || len(items) == 0 {
		return nil
	}
	if cfg.Template == nil {
		r.logger.Warn("repeater has no template", "node_id", container.ID)
		return nil
	}

	ancestor := ""
	if c.Repeater != nil {
		ancestor = c.Repeater.NodeID
	}
	sep := domain.DefaultIDSeparator
	if cfg.IDStrategy != nil && cfg.IDStrategy.Separator != "" {
		sep = cfg.IDStrategy.Separator
	}

	out := make([]repeatedChild, 0, len(items))
	for i, item := range items {
		clone, err := domain.CloneNode(cfg.Template)
		if err != nil {
			r.logger.Error("failed to clone repeater template", "node_id", container.ID, "error", err)
			return out
		}
		clone.ID = RepeatedID(cfg.IDStrategy, container.ID, ancestor, i)
		suffix := sep + strconv.Itoa(i)
		for k := range clone.Children {
			clone.Children[k].Walk(func(n *domain.Node) bool {
				n.ID += suffix
				return true
			})
		}
		scope := domain.RepeaterScope{NodeID: clone.ID, ParentID: container.ID}
		out = append(out, repeatedChild{
			node: clone,
			ctx:  c.ForItem(containerState, item, i, scope),
		})
	}
	return out
}

func typeName(v any) string {
	if v == nil {
		return "undefined"
	}
	return fmt.Sprintf("%T", v)
}
