package dsl

import "github.com/aretw0/canopy/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node     domain.Node
	children []*NodeBuilder
	template *NodeBuilder
}

func newNode(id string, typ domain.NodeType, kind string) *NodeBuilder {
	return &NodeBuilder{node: domain.Node{ID: id, Type: typ, Kind: kind}}
}

// Section creates a section holding children.
func Section(id string, children ...*NodeBuilder) *NodeBuilder {
	n := newNode(id, domain.NodeTypeSection, "")
	n.children = children
	return n
}

// Atom creates a leaf widget of the given kind.
func Atom(id, kind string) *NodeBuilder {
	return newNode(id, domain.NodeTypeAtom, kind)
}

// Component creates a host-provided composite widget.
func Component(id, kind string) *NodeBuilder {
	return newNode(id, domain.NodeTypeComponent, kind)
}

// CodeBlock creates a raw code node.
func CodeBlock(id, language, code string) *NodeBuilder {
	n := newNode(id, domain.NodeTypeCodeBlock, "")
	n.node.Language = language
	n.node.Code = code
	return n
}

// Order sets the sort position among siblings.
func (n *NodeBuilder) Order(order int) *NodeBuilder {
	n.node.Order = order
	return n
}

// Param sets one param. Strings may hold {{ }} bindings.
func (n *NodeBuilder) Param(key string, value any) *NodeBuilder {
	if n.node.Params == nil {
		n.node.Params = make(map[string]any)
	}
	n.node.Params[key] = value
	return n
}

// State sets one key of the initial internal state. Integers are stored as
// float64 to match decoded documents.
func (n *NodeBuilder) State(key string, value any) *NodeBuilder {
	if n.node.State == nil {
		n.node.State = make(map[string]any)
	}
	if i, ok := value.(int); ok {
		value = float64(i)
	}
	n.node.State[key] = value
	return n
}

// Hidden hides the node until an action opens it.
func (n *NodeBuilder) Hidden() *NodeBuilder {
	n.visibility().Hidden = true
	return n
}

// VisibleIf shows the node only when expr is truthy.
func (n *NodeBuilder) VisibleIf(expr string) *NodeBuilder {
	n.visibility().Expression = expr
	return n
}

func (n *NodeBuilder) visibility() *domain.Visibility {
	if n.node.Visibility == nil {
		n.node.Visibility = &domain.Visibility{}
	}
	return n.node.Visibility
}

// Responsive sets the partial node applied at breakpoint.
func (n *NodeBuilder) Responsive(breakpoint string, override map[string]any) *NodeBuilder {
	if n.node.ResponsiveOverrides == nil {
		n.node.ResponsiveOverrides = make(map[string]map[string]any)
	}
	n.node.ResponsiveOverrides[breakpoint] = override
	return n
}

// Localized sets the partial node applied for locale.
func (n *NodeBuilder) Localized(locale string, override map[string]any) *NodeBuilder {
	if n.node.LocaleOverrides == nil {
		n.node.LocaleOverrides = make(map[string]map[string]any)
	}
	n.node.LocaleOverrides[locale] = override
	return n
}

// Require adds a blocking data requirement, readable as nodeData.<key>.
func (n *NodeBuilder) Require(key string, src domain.DataSource) *NodeBuilder {
	n.node.DataRequirements = append(n.node.DataRequirements, domain.DataRequirementConfig{Key: key, Source: src})
	return n
}

// Prefetch adds a non-blocking data requirement with a default value.
func (n *NodeBuilder) Prefetch(key string, src domain.DataSource, defaultValue any) *NodeBuilder {
	blocking := false
	n.node.DataRequirements = append(n.node.DataRequirements, domain.DataRequirementConfig{
		Key: key, Source: src, Blocking: &blocking, DefaultValue: defaultValue,
	})
	return n
}

// Placeholder sets what renders while the node is loading.
func (n *NodeBuilder) Placeholder(typ domain.PlaceholderType, nodeID string) *NodeBuilder {
	n.node.LoadingPlaceholder = &domain.Placeholder{Type: typ, NodeID: nodeID}
	return n
}

// Repeat turns the section into a repeater over source, rendering template per item.
func (n *NodeBuilder) Repeat(source string, template *NodeBuilder) *NodeBuilder {
	if n.node.Repeater == nil {
		n.node.Repeater = &domain.RepeaterConfig{}
	}
	n.node.Repeater.Source = source
	n.template = template
	return n
}

// Filter keeps repeated items whose field satisfies op against value.
func (n *NodeBuilder) Filter(field, op string, value any) *NodeBuilder {
	if n.node.Repeater != nil {
		n.node.Repeater.Filter = &domain.RepeaterFilter{Field: field, Operator: op, Value: value}
	}
	return n
}

// SortBy orders repeated items by field; direction is "asc" or "desc".
func (n *NodeBuilder) SortBy(field, direction string) *NodeBuilder {
	if n.node.Repeater != nil {
		n.node.Repeater.Sort = &domain.RepeaterSort{Field: field, Direction: direction}
	}
	return n
}

// Limit caps the number of repeated items.
func (n *NodeBuilder) Limit(limit int) *NodeBuilder {
	if n.node.Repeater != nil {
		n.node.Repeater.Limit = float64(limit)
	}
	return n
}

// On appends actions to the chain of event.
func (n *NodeBuilder) On(event string, actions ...*ActionBuilder) *NodeBuilder {
	if n.node.EventHandlers == nil {
		n.node.EventHandlers = make(map[string][]domain.Action)
	}
	n.node.EventHandlers[event] = append(n.node.EventHandlers[event], buildActions(actions)...)
	return n
}

// Build returns the underlying domain.Node with its children and template.
func (n *NodeBuilder) Build() domain.Node {
	node := n.node
	if len(n.children) > 0 {
		node.Children = make([]domain.Node, 0, len(n.children))
		for _, c := range n.children {
			node.Children = append(node.Children, c.Build())
		}
	}
	if n.node.Repeater != nil {
		rep := *n.node.Repeater
		if n.template != nil {
			tpl := n.template.Build()
			rep.Template = &tpl
		}
		node.Repeater = &rep
	}
	return node
}
