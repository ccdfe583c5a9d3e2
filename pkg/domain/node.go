package domain

// NodeType is the discriminator of the node tagged union.
type NodeType string

const (
	// NodeTypeSection groups children, either static or generated by a repeater.
	NodeTypeSection NodeType = "section"
	// NodeTypeAtom is a leaf widget (text, image, button...).
	NodeTypeAtom NodeType = "atom"
	// NodeTypeComponent is a composite widget provided by the host.
	NodeTypeComponent NodeType = "component"
	// NodeTypeCodeBlock carries raw code to be embedded by the renderer.
	NodeTypeCodeBlock NodeType = "codeblock"
)

// Node represents one addressable unit of the page tree.
// A Node is immutable once loaded: runtime changes are layered on top of it
// as live overrides or internal state, never written back into the definition.
type Node struct {
	ID    string   `json:"id" yaml:"id"`
	Type  NodeType `json:"type" yaml:"type"`
	Kind  string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Order int      `json:"order,omitempty" yaml:"order,omitempty"`

	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	State  map[string]any `json:"state,omitempty" yaml:"state,omitempty"`

	Visibility        *Visibility      `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Positioning       map[string]any   `json:"positioning,omitempty" yaml:"positioning,omitempty"`
	Animations        []map[string]any `json:"animations,omitempty" yaml:"animations,omitempty"`
	InteractionStates map[string]any   `json:"interactionStates,omitempty" yaml:"interactionStates,omitempty"`

	DataRequirements []DataRequirementConfig `json:"dataRequirements,omitempty" yaml:"dataRequirements,omitempty"`
	EventHandlers    map[string][]Action     `json:"eventHandlers,omitempty" yaml:"eventHandlers,omitempty"`

	// ResponsiveOverrides and LocaleOverrides hold partial nodes keyed by
	// breakpoint name and locale respectively.
	ResponsiveOverrides map[string]map[string]any `json:"responsiveOverrides,omitempty" yaml:"responsiveOverrides,omitempty"`
	LocaleOverrides     map[string]map[string]any `json:"localeOverrides,omitempty" yaml:"localeOverrides,omitempty"`

	LoadingPlaceholder *Placeholder `json:"loadingPlaceholder,omitempty" yaml:"loadingPlaceholder,omitempty"`

	// Section only. A repeater resolving to a collection wins over Children.
	Children []Node          `json:"children,omitempty" yaml:"children,omitempty"`
	Repeater *RepeaterConfig `json:"repeater,omitempty" yaml:"repeater,omitempty"`

	// Codeblock only.
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Visibility decides whether a node renders at all.
// Expression wins over Conditions, which win over Hidden.
type Visibility struct {
	Hidden     bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// Deprecated: use Expression.
	Conditions     []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ConditionLogic string      `json:"conditionLogic,omitempty" yaml:"conditionLogic,omitempty"`
}

// Condition compares the value found at Path against Value.
type Condition struct {
	Path     string `json:"path" yaml:"path" mapstructure:"path"`
	Operator string `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
}

// Condition operators shared by visibility, action conditions and repeater filters.
const (
	OpEquals             = "equals"
	OpNotEquals          = "notEquals"
	OpGreaterThan        = "greaterThan"
	OpGreaterThanOrEqual = "greaterThanOrEqual"
	OpLessThan           = "lessThan"
	OpLessThanOrEqual    = "lessThanOrEqual"
	OpContains           = "contains"
	OpNotContains        = "notContains"
	OpExists             = "exists"
	OpNotExists          = "notExists"
	OpRegex              = "regex"
)

// Condition logic values.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// RepeaterConfig generates section children from a collection.
// Template is never resolved eagerly; only the meta-fields are.
type RepeaterConfig struct {
	Source     string          `json:"source" yaml:"source"`
	Template   *Node           `json:"template,omitempty" yaml:"template,omitempty"`
	Filter     *RepeaterFilter `json:"filter,omitempty" yaml:"filter,omitempty"`
	Sort       *RepeaterSort   `json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit      any             `json:"limit,omitempty" yaml:"limit,omitempty"`
	IDStrategy *IDStrategy     `json:"idStrategy,omitempty" yaml:"idStrategy,omitempty"`
}

// RepeaterFilter keeps items whose Field satisfies Operator against Value.
type RepeaterFilter struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// RepeaterSort orders items by Field. Direction is "asc" (default) or "desc".
type RepeaterSort struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// IDStrategy controls the ids of repeated children.
type IDStrategy struct {
	Prefix           string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Separator        string `json:"separator,omitempty" yaml:"separator,omitempty"`
	IncludeAncestors bool   `json:"includeAncestors,omitempty" yaml:"includeAncestors,omitempty"`
}

// DefaultIDSeparator joins parent id and index for repeated children.
const DefaultIDSeparator = "_"

// PlaceholderType enumerates what the renderer shows while a node loads.
type PlaceholderType string

const (
	PlaceholderSkeleton PlaceholderType = "skeleton"
	PlaceholderSpinner  PlaceholderType = "spinner"
	PlaceholderNode     PlaceholderType = "node"
	PlaceholderNone     PlaceholderType = "none"
)

// Placeholder configures the loading state of a node.
type Placeholder struct {
	Type   PlaceholderType `json:"type" yaml:"type"`
	NodeID string          `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	Config map[string]any  `json:"config,omitempty" yaml:"config,omitempty"`
}

// Walk visits n and every static descendant depth-first.
// Repeater templates are not visited. Returning false stops descending into
// the current node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for i := range n.Children {
		n.Children[i].Walk(fn)
	}
}
