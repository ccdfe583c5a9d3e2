package loader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// Issue is a single problem found in a page document.
type Issue struct {
	NodeID string
	Field  string
	Reason string
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Field, i.Reason)
	}
	return fmt.Sprintf("node %q %s: %s", i.NodeID, i.Field, i.Reason)
}

// ValidationError aggregates every issue of a page.
type ValidationError struct {
	PageID string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("page %q: %s", e.PageID, e.Issues[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "page %q: %d validation errors:\n", e.PageID, len(e.Issues))
	for i, issue := range e.Issues {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, issue)
	}
	return b.String()
}

// ValidateOption tunes Validate.
type ValidateOption func(*validator)

// AllowActionTypes accepts host-defined action types besides the built-in set.
func AllowActionTypes(types ...domain.ActionType) ValidateOption {
	return func(v *validator) {
		v.actions = append(v.actions, types...)
	}
}

var (
	nodeTypes = []domain.NodeType{
		domain.NodeTypeSection, domain.NodeTypeAtom, domain.NodeTypeComponent, domain.NodeTypeCodeBlock,
	}
	operators = []string{
		domain.OpEquals, domain.OpNotEquals, domain.OpGreaterThan, domain.OpGreaterThanOrEqual,
		domain.OpLessThan, domain.OpLessThanOrEqual, domain.OpContains, domain.OpNotContains,
		domain.OpExists, domain.OpNotExists, domain.OpRegex,
	}
	sources = []string{
		domain.SourceContract, domain.SourceREST, domain.SourceGraphQL, domain.SourceMock, domain.SourceStatic,
	}
	placeholders = []domain.PlaceholderType{
		domain.PlaceholderSkeleton, domain.PlaceholderSpinner, domain.PlaceholderNode, domain.PlaceholderNone,
	}
)

type validator struct {
	actions []domain.ActionType
	ids     map[string]bool
	issues  []Issue
	refs    []Issue // placeholder node references, checked once all ids are known
}

// Validate checks the structural rules of a page: unique node ids, known
// node and action types, children XOR repeater on sections, well-formed
// data requirements, and placeholder references to existing nodes.
// Unknown atom or component kinds are not checked; they render as
// unsupported nodes.
func Validate(page *domain.Page, opts ...ValidateOption) error {
	v := &validator{
		actions: slices.Clone(domain.ActionTypes),
		ids:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}

	if page.ID == "" {
		v.add("", "id", "page id is required")
	}
	for i := range page.Nodes {
		v.node(&page.Nodes[i])
	}
	for _, ref := range v.refs {
		if !v.ids[ref.Reason] {
			v.add(ref.NodeID, ref.Field, fmt.Sprintf("placeholder node %q does not exist", ref.Reason))
		}
	}

	if len(v.issues) > 0 {
		return &ValidationError{PageID: page.ID, Issues: v.issues}
	}
	return nil
}

func (v *validator) add(nodeID, field, reason string) {
	v.issues = append(v.issues, Issue{NodeID: nodeID, Field: field, Reason: reason})
}

func (v *validator) node(n *domain.Node) {
	if n.ID == "" {
		v.add("", "id", fmt.Sprintf("%s node without id", n.Type))
	} else if v.ids[n.ID] {
		v.add(n.ID, "id", "duplicate node id")
	} else {
		v.ids[n.ID] = true
	}

	if !slices.Contains(nodeTypes, n.Type) {
		v.add(n.ID, "type", fmt.Sprintf("unknown node type %q", n.Type))
	}
	if n.Type != domain.NodeTypeSection && (len(n.Children) > 0 || n.Repeater != nil) {
		v.add(n.ID, "children", "only sections may have children or a repeater")
	}
	if len(n.Children) > 0 && n.Repeater != nil {
		v.add(n.ID, "repeater", "children and repeater are mutually exclusive")
	}
	if n.Type == domain.NodeTypeCodeBlock && n.Code == "" {
		v.add(n.ID, "code", "codeblock without code")
	}

	v.visibility(n)
	v.requirements(n)
	v.placeholder(n)
	events := make([]string, 0, len(n.EventHandlers))
	for event := range n.EventHandlers {
		events = append(events, event)
	}
	slices.Sort(events)
	for _, event := range events {
		v.chain(n.ID, "eventHandlers."+event, n.EventHandlers[event])
	}

	if r := n.Repeater; r != nil {
		if strings.TrimSpace(r.Source) == "" {
			v.add(n.ID, "repeater.source", "required")
		}
		if r.Template == nil {
			v.add(n.ID, "repeater.template", "required")
		} else {
			v.node(r.Template)
		}
		if r.Filter != nil && !slices.Contains(operators, r.Filter.Operator) {
			v.add(n.ID, "repeater.filter.operator", fmt.Sprintf("unknown operator %q", r.Filter.Operator))
		}
		if r.Sort != nil && r.Sort.Direction != "" && r.Sort.Direction != "asc" && r.Sort.Direction != "desc" {
			v.add(n.ID, "repeater.sort.direction", fmt.Sprintf("expected asc or desc, got %q", r.Sort.Direction))
		}
	}
	for i := range n.Children {
		v.node(&n.Children[i])
	}
}

func (v *validator) visibility(n *domain.Node) {
	if n.Visibility == nil {
		return
	}
	v.conditions(n.ID, "visibility", n.Visibility.Conditions, n.Visibility.ConditionLogic)
}

func (v *validator) conditions(nodeID, field string, conds []domain.Condition, logic string) {
	for i, c := range conds {
		if c.Path == "" {
			v.add(nodeID, fmt.Sprintf("%s.conditions[%d].path", field, i), "required")
		}
		if !slices.Contains(operators, c.Operator) {
			v.add(nodeID, fmt.Sprintf("%s.conditions[%d].operator", field, i), fmt.Sprintf("unknown operator %q", c.Operator))
		}
	}
	if logic != "" && !strings.EqualFold(logic, domain.LogicAnd) && !strings.EqualFold(logic, domain.LogicOr) {
		v.add(nodeID, field+".conditionLogic", fmt.Sprintf("expected AND or OR, got %q", logic))
	}
}

func (v *validator) requirements(n *domain.Node) {
	keys := make(map[string]bool)
	for i, req := range n.DataRequirements {
		field := fmt.Sprintf("dataRequirements[%d]", i)
		switch {
		case req.Key == "":
			v.add(n.ID, field+".key", "required")
		case keys[req.Key]:
			v.add(n.ID, field+".key", fmt.Sprintf("duplicate key %q", req.Key))
		}
		keys[req.Key] = true

		src := req.Source
		if !slices.Contains(sources, src.Type) {
			v.add(n.ID, field+".source.type", fmt.Sprintf("unknown source type %q", src.Type))
			continue
		}
		switch src.Type {
		case domain.SourceContract:
			if src.Contract == "" {
				v.add(n.ID, field+".source.contract", "required")
			}
		case domain.SourceREST:
			if src.Endpoint == "" {
				v.add(n.ID, field+".source.endpoint", "required")
			}
		case domain.SourceGraphQL:
			if src.Endpoint == "" || src.Query == "" {
				v.add(n.ID, field+".source", "graphql needs endpoint and query")
			}
		}
	}
}

func (v *validator) placeholder(n *domain.Node) {
	p := n.LoadingPlaceholder
	if p == nil {
		return
	}
	if !slices.Contains(placeholders, p.Type) {
		v.add(n.ID, "loadingPlaceholder.type", fmt.Sprintf("unknown placeholder type %q", p.Type))
		return
	}
	if p.Type != domain.PlaceholderNode {
		return
	}
	switch p.NodeID {
	case "":
		v.add(n.ID, "loadingPlaceholder.nodeId", "required")
	case n.ID:
		v.add(n.ID, "loadingPlaceholder.nodeId", "a node cannot be its own placeholder")
	default:
		v.refs = append(v.refs, Issue{NodeID: n.ID, Field: "loadingPlaceholder.nodeId", Reason: p.NodeID})
	}
}

func (v *validator) chain(nodeID, field string, chain []domain.Action) {
	for i, a := range chain {
		f := fmt.Sprintf("%s[%d]", field, i)
		if a.ID == "" {
			v.add(nodeID, f+".id", "required")
		}
		if !slices.Contains(v.actions, a.Type) {
			v.add(nodeID, f+".type", fmt.Sprintf("unknown action type %q", a.Type))
		}
		if a.DelayMs < 0 {
			v.add(nodeID, f+".delayMs", "must not be negative")
		}
		v.conditions(nodeID, f, a.Conditions, a.ConditionLogic)
		v.chain(nodeID, f+".onSuccess", a.OnSuccess)
		v.chain(nodeID, f+".onError", a.OnError)
	}
}
