package runtime

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
)

// Conditions evaluates legacy condition lists, action conditions and repeater filters.
type Conditions struct {
	eval    *expr.Evaluator
	logger  *slog.Logger
	regexes sync.Map // pattern -> *regexp.Regexp or error
}

// NewConditions creates a condition evaluator.
func NewConditions(eval *expr.Evaluator, logger *slog.Logger) *Conditions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Conditions{eval: eval, logger: logger}
}

// All combines conds with logic ("AND" by default, "OR"). An empty list is true.
func (c *Conditions) All(conds []domain.Condition, logic string, scope expr.Scope) bool {
	if len(conds) == 0 {
		return true
	}
	or := strings.EqualFold(logic, domain.LogicOr)
	for _, cond := range conds {
		ok := c.Eval(cond, scope)
		if or && ok {
			return true
		}
		if !or && !ok {
			return false
		}
	}
	return !or
}

// Eval applies one condition: the value at cond.Path is compared with cond.Value.
func (c *Conditions) Eval(cond domain.Condition, scope expr.Scope) bool {
	actual := c.lookup(cond.Path, scope)
	expected := c.eval.ResolveValue(cond.Value, scope)
	return c.Match(cond.Operator, actual, expected)
}

func (c *Conditions) lookup(path string, scope expr.Scope) any {
	if expr.HasPlaceholder(path) {
		return c.eval.Resolve(path, scope)
	}
	segs := expr.SplitPath(path)
	if len(segs) == 0 || scope == nil {
		return nil
	}
	root, ok := scope.Lookup(segs[0])
	if !ok {
		return nil
	}
	return expr.Get(root, strings.Join(quoteSegments(segs[1:]), "."), nil)
}

// quoteSegments keeps segments containing dots addressable after a re-join.
func quoteSegments(segs []string) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		if strings.ContainsAny(s, ".[]") {
			out[i] = "['" + s + "']"
			continue
		}
		out[i] = s
	}
	return out
}

// Match reports whether actual satisfies operator against expected.
// Type mismatches are false, including for notContains.
func (c *Conditions) Match(operator string, actual, expected any) bool {
	switch operator {
	case domain.OpEquals:
		return expr.LooseEqual(actual, expected)
	case domain.OpNotEquals:
		return !expr.LooseEqual(actual, expected)
	case domain.OpGreaterThan, domain.OpGreaterThanOrEqual, domain.OpLessThan, domain.OpLessThanOrEqual:
		a, okA := expr.ToNumber(actual)
		b, okB := expr.ToNumber(expected)
		if actual == nil || expected == nil || !okA || !okB {
			return false
		}
		switch operator {
		case domain.OpGreaterThan:
			return a > b
		case domain.OpGreaterThanOrEqual:
			return a >= b
		case domain.OpLessThan:
			return a < b
		}
		return a <= b
	case domain.OpContains:
		return containable(actual) && expr.Contains(actual, expected)
	case domain.OpNotContains:
		return containable(actual) && !expr.Contains(actual, expected)
	case domain.OpExists:
		return actual != nil
	case domain.OpNotExists:
		return actual == nil
	case domain.OpRegex:
		s, ok := actual.(string)
		pattern, okP := expected.(string)
		if !ok || !okP {
			return false
		}
		re := c.compile(pattern)
		return re != nil && re.MatchString(s)
	}
	c.logger.Warn("unknown condition operator", "operator", operator)
	return false
}

func containable(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	_, ok := expr.AsSlice(v)
	return ok
}

func (c *Conditions) compile(pattern string) *regexp.Regexp {
	if cached, ok := c.regexes.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		c.logger.Warn("invalid regex condition", "pattern", pattern, "error", err)
		c.regexes.Store(pattern, err)
		return nil
	}
	c.regexes.Store(pattern, re)
	return re
}
