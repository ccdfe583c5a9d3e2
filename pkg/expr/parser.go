package expr

import "fmt"

// node is an expression AST node.
type node interface{}

type literalNode struct{ value any }

type identNode struct{ name string }

type memberNode struct {
	object   node
	property node
}

type callNode struct {
	name string
	args []node
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type logicalNode struct {
	op          string
	left, right node
}

type conditionalNode struct {
	test, then, otherwise node
}

type arrayNode struct{ elems []node }

type parser struct {
	toks []token
	pos  int
}

// parse turns an expression (without the surrounding braces) into an AST.
func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("empty expression")
	}
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) expect(op string) error {
	if !p.isOp(op) {
		t := p.peek()
		if t.kind == tokEOF {
			return fmt.Errorf("expected %q, got end of expression", op)
		}
		return fmt.Errorf("expected %q at %d, got %q", op, t.pos, t.text)
	}
	p.next()
	return nil
}

func (p *parser) ternary() (node, error) {
	test, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.isOp("?") {
		return test, nil
	}
	p.next()
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	otherwise, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &conditionalNode{test: test, then: then, otherwise: otherwise}, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) equality() (node, error) {
	return p.binaryLevel(p.comparison, "==", "!=", "===", "!==")
}

func (p *parser) comparison() (node, error) {
	return p.binaryLevel(p.additive, "<", "<=", ">", ">=")
}

func (p *parser) additive() (node, error) {
	return p.binaryLevel(p.multiplicative, "+", "-")
}

func (p *parser) multiplicative() (node, error) {
	return p.binaryLevel(p.unary, "*", "/", "%")
}

func (p *parser) binaryLevel(operand func() (node, error), ops ...string) (node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.isOp(ops...) {
		op := p.next().text
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("!", "-", "+") {
		op := p.next().text
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.next()
			t := p.next()
			switch t.kind {
			case tokIdent:
				n = &memberNode{object: n, property: &literalNode{value: t.text}}
			case tokNumber:
				n = &memberNode{object: n, property: &literalNode{value: t.num}}
			default:
				return nil, fmt.Errorf("expected property name at %d", t.pos)
			}
		case p.isOp("["):
			p.next()
			prop, err := p.ternary()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &memberNode{object: n, property: prop}
		case p.isOp("("):
			id, ok := n.(*identNode)
			if !ok {
				return nil, fmt.Errorf("only helper functions can be called (at %d)", p.peek().pos)
			}
			p.next()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			n = &callNode{name: id.name, args: args}
		default:
			return n, nil
		}
	}
}

func (p *parser) list(closing string) ([]node, error) {
	var items []node
	if p.isOp(closing) {
		p.next()
		return items, nil
	}
	for {
		item, err := p.ternary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isOp(",") {
			p.next()
			continue
		}
		if err := p.expect(closing); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &literalNode{value: t.num}, nil
	case tokString:
		return &literalNode{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "undefined":
			return &literalNode{value: nil}, nil
		}
		return &identNode{name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			inner, err := p.ternary()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			elems, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return &arrayNode{elems: elems}, nil
		}
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return nil, fmt.Errorf("unexpected end of expression")
}

// roots collects the root identifiers an AST reads from.
func roots(n node, seen map[string]bool) {
	switch t := n.(type) {
	case *identNode:
		seen[t.name] = true
	case *memberNode:
		roots(t.object, seen)
		roots(t.property, seen)
	case *callNode:
		for _, a := range t.args {
			roots(a, seen)
		}
	case *unaryNode:
		roots(t.operand, seen)
	case *binaryNode:
		roots(t.left, seen)
		roots(t.right, seen)
	case *logicalNode:
		roots(t.left, seen)
		roots(t.right, seen)
	case *conditionalNode:
		roots(t.test, seen)
		roots(t.then, seen)
		roots(t.otherwise, seen)
	case *arrayNode:
		for _, e := range t.elems {
			roots(e, seen)
		}
	}
}
