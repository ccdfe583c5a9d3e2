package domain

// ResolvedNode is what the rendering collaborator receives: a node with every
// binding resolved. It never contains unresolved expression strings in Params.
type ResolvedNode struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Kind string   `json:"kind,omitempty"`

	Params            map[string]any   `json:"params,omitempty"`
	Positioning       map[string]any   `json:"positioning,omitempty"`
	Animations        []map[string]any `json:"animations,omitempty"`
	InteractionStates map[string]any   `json:"interactionStates,omitempty"`

	Visible bool `json:"visible"`
	Loading bool `json:"loading,omitempty"`

	// Placeholder is set while Loading.
	Placeholder *ResolvedPlaceholder `json:"placeholder,omitempty"`

	EventHandlers map[string][]Action `json:"eventHandlers,omitempty"`
	Children      []*ResolvedNode     `json:"children,omitempty"`

	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`

	// DataErrors holds per-requirement failures; rendering proceeds with defaults.
	DataErrors map[string]string `json:"dataErrors,omitempty"`

	// Scope is set on nodes resolved inside a repeater. Triggers evaluate
	// their actions in it.
	Scope *ItemScope `json:"-"`

	// Unsupported marks a labeled error placeholder for unknown types or resolution errors.
	Unsupported bool   `json:"unsupported,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ResolvedPlaceholder is handed to the renderer instead of content while loading.
type ResolvedPlaceholder struct {
	Type   PlaceholderType `json:"type"`
	Config map[string]any  `json:"config,omitempty"`
	Node   *ResolvedNode   `json:"node,omitempty"`
}

// Find returns the first node in the resolved tree with the given id.
func (r *ResolvedNode) Find(id string) *ResolvedNode {
	if r == nil {
		return nil
	}
	if r.ID == id {
		return r
	}
	for _, c := range r.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}
