package expr

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
)

// ErrDivisionByZero is returned when an expression divides by zero.
var ErrDivisionByZero = errors.New("division by zero")

// Scope resolves the root identifiers of an expression.
// domain.EvaluationContext implements it.
type Scope interface {
	Lookup(name string) (any, bool)
}

// MapScope is a Scope backed by a plain map.
type MapScope map[string]any

// Lookup implements Scope.
func (m MapScope) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Evaluator parses and evaluates placeholder expressions.
// It is safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
	cache  sync.Map // source -> *compiled
}

type compiled struct {
	ast  node
	err  error
	refs []string
}

// New creates an Evaluator. A nil logger discards diagnostics.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{logger: logger}
}

func (e *Evaluator) compile(src string) *compiled {
	if c, ok := e.cache.Load(src); ok {
		return c.(*compiled)
	}
	ast, err := parse(src)
	c := &compiled{ast: ast, err: err}
	if err == nil {
		seen := make(map[string]bool)
		roots(ast, seen)
		for name := range seen {
			c.refs = append(c.refs, name)
		}
		sort.Strings(c.refs)
	}
	actual, _ := e.cache.LoadOrStore(src, c)
	return actual.(*compiled)
}

// Evaluate runs a single expression. The surrounding braces are optional.
func (e *Evaluator) Evaluate(src string, scope Scope) (any, error) {
	c := e.compile(stripBraces(src))
	if c.err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, c.err)
	}
	v, err := e.eval(c.ast, scope)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", src, err)
	}
	return v, nil
}

// References returns the root identifiers read by every placeholder in s.
func (e *Evaluator) References(s string) []string {
	seen := make(map[string]bool)
	for _, seg := range scan(s) {
		if !seg.expr {
			continue
		}
		c := e.compile(seg.text)
		for _, r := range c.refs {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Truthy reports the truthiness of v.
func (e *Evaluator) Truthy(v any) bool { return Truthy(v) }

// LooseEqual reports loose equality of a and b.
func (e *Evaluator) LooseEqual(a, b any) bool { return LooseEqual(a, b) }

// Get reads path from obj, returning fallback when missing.
func (e *Evaluator) Get(obj any, path string, fallback any) any { return Get(obj, path, fallback) }

func stripBraces(src string) string {
	s := strings.TrimSpace(src)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && strings.Count(s, "{{") == 1 {
		return strings.TrimSpace(s[2 : len(s)-2])
	}
	return s
}

func (e *Evaluator) eval(n node, scope Scope) (any, error) {
	switch t := n.(type) {
	case *literalNode:
		return t.value, nil
	case *identNode:
		if scope == nil {
			return nil, nil
		}
		v, ok := scope.Lookup(t.name)
		if !ok {
			e.logger.Debug("unresolved identifier", "name", t.name)
		}
		return v, nil
	case *memberNode:
		obj, err := e.eval(t.object, scope)
		if err != nil {
			return nil, err
		}
		key, err := e.eval(t.property, scope)
		if err != nil {
			return nil, err
		}
		v, _ := Member(obj, key)
		return v, nil
	case *arrayNode:
		out := make([]any, 0, len(t.elems))
		for _, el := range t.elems {
			v, err := e.eval(el, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *callNode:
		fn, ok := helpers[t.name]
		if !ok {
			return nil, fmt.Errorf("unknown helper %q", t.name)
		}
		args := make([]any, len(t.args))
		for i, a := range t.args {
			v, err := e.eval(a, scope)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(args)
	case *unaryNode:
		v, err := e.eval(t.operand, scope)
		if err != nil {
			return nil, err
		}
		switch t.op {
		case "!":
			return !Truthy(v), nil
		case "-":
			if n, ok := ToNumber(v); ok {
				return -n, nil
			}
			return math.NaN(), nil
		default:
			if n, ok := ToNumber(v); ok {
				return n, nil
			}
			return math.NaN(), nil
		}
	case *logicalNode:
		left, err := e.eval(t.left, scope)
		if err != nil {
			return nil, err
		}
		if t.op == "||" && Truthy(left) || t.op == "&&" && !Truthy(left) {
			return left, nil
		}
		return e.eval(t.right, scope)
	case *conditionalNode:
		test, err := e.eval(t.test, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return e.eval(t.then, scope)
		}
		return e.eval(t.otherwise, scope)
	case *binaryNode:
		left, err := e.eval(t.left, scope)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(t.right, scope)
		if err != nil {
			return nil, err
		}
		return binary(t.op, left, right)
	}
	return nil, fmt.Errorf("unsupported expression node %T", n)
}

func binary(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return LooseEqual(left, right), nil
	case "!=":
		return !LooseEqual(left, right), nil
	case "===":
		return StrictEqual(left, right), nil
	case "!==":
		return !StrictEqual(left, right), nil
	case "<", "<=", ">", ">=":
		c, ok := Compare(left, right)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		}
		return c >= 0, nil
	case "+":
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return Stringify(left) + Stringify(right), nil
		}
	}

	if left == nil || right == nil {
		return nil, nil
	}
	x, okX := ToNumber(left)
	y, okY := ToNumber(right)
	if !okX || !okY {
		return math.NaN(), nil
	}
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, ErrDivisionByZero
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(x, y), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}
