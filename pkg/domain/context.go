package domain

// Scope names exposed to expressions.
const (
	ScopeData          = "data"
	ScopeNodeData      = "nodeData"
	ScopeState         = "state"
	ScopeParentState   = "parentState"
	ScopeStates        = "states"
	ScopePage          = "page"
	ScopeSite          = "site"
	ScopeUser          = "user"
	ScopeViewport      = "viewport"
	ScopeItem          = "item"
	ScopeIndex         = "index"
	ScopeRepeater      = "repeater"
	ScopeFormData      = "formData"
	ScopeActionResults = "actionResults"
	ScopeEvent         = "event"
	ScopeError         = "error"
)

// RepeaterScope identifies the repeated child and its container.
type RepeaterScope struct {
	NodeID   string `json:"nodeId"`
	ParentID string `json:"parentId"`
}

// ItemScope is the repeater scope a node was resolved in.
type ItemScope struct {
	Item     any
	Index    int
	Repeater RepeaterScope
	// StateNodeID owns the state the node reads: the container for a
	// repeated child, the node itself for anything nested below it.
	StateNodeID string
}

// EvaluationContext is the read-only set of scopes visible to expressions.
// Values are copied by reference: callers must not mutate the maps they pass in.
type EvaluationContext struct {
	Data        map[string]any
	NodeData    map[string]any
	State       map[string]any
	ParentState map[string]any
	States      map[string]map[string]any
	Page        map[string]any
	Site        map[string]any
	User        map[string]any
	Viewport    map[string]any

	// Repeater template scope.
	Item     any
	Index    int
	Repeater *RepeaterScope

	// Action param scope.
	FormData      map[string]any
	ActionResults map[string]any
	Event         map[string]any
	Error         map[string]any

	// Extra holds auxiliary keys spread into the root scope.
	Extra map[string]any
}

// Lookup resolves a root identifier. Missing scopes report false.
func (c *EvaluationContext) Lookup(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case ScopeData:
		return mapScope(c.Data)
	case ScopeNodeData:
		return mapScope(c.NodeData)
	case ScopeState:
		return mapScope(c.State)
	case ScopeParentState:
		return mapScope(c.ParentState)
	case ScopeStates:
		if c.States == nil {
			return nil, false
		}
		out := make(map[string]any, len(c.States))
		for k, v := range c.States {
			out[k] = v
		}
		return out, true
	case ScopePage:
		return mapScope(c.Page)
	case ScopeSite:
		return mapScope(c.Site)
	case ScopeUser:
		return mapScope(c.User)
	case ScopeViewport:
		return mapScope(c.Viewport)
	case ScopeItem:
		if c.Repeater == nil {
			return nil, false
		}
		return c.Item, true
	case ScopeIndex:
		if c.Repeater == nil {
			return nil, false
		}
		return float64(c.Index), true
	case ScopeRepeater:
		if c.Repeater == nil {
			return nil, false
		}
		return map[string]any{"nodeId": c.Repeater.NodeID, "parentId": c.Repeater.ParentID}, true
	case ScopeFormData:
		return mapScope(c.FormData)
	case ScopeActionResults:
		return mapScope(c.ActionResults)
	case ScopeEvent:
		return mapScope(c.Event)
	case ScopeError:
		return mapScope(c.Error)
	}
	if c.Extra != nil {
		v, ok := c.Extra[name]
		return v, ok
	}
	return nil, false
}

func mapScope(m map[string]any) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m, true
}

// Global returns a context restricted to the page-wide scopes
// (data, site, page, user). Used before node-level data exists.
func (c EvaluationContext) Global() EvaluationContext {
	return EvaluationContext{
		Data: c.Data,
		Site: c.Site,
		Page: c.Page,
		User: c.User,
	}
}

// ForItem derives the scope of one repeated child.
// State is forced to the container's own internal state.
func (c EvaluationContext) ForItem(containerState map[string]any, item any, index int, scope RepeaterScope) EvaluationContext {
	next := c
	next.State = containerState
	next.Item = item
	next.Index = index
	next.Repeater = &scope
	return next
}

// WithAux layers an action trigger's auxiliary context on top of c.
func (c EvaluationContext) WithAux(aux AuxContext) EvaluationContext {
	next := c
	next.FormData = aux.FormData
	if next.FormData == nil {
		next.FormData = map[string]any{}
	}
	next.ActionResults = aux.ActionResults
	if next.ActionResults == nil {
		next.ActionResults = map[string]any{}
	}
	next.Event = aux.Event
	next.Error = aux.Error
	if len(aux.Extra) > 0 {
		extra := make(map[string]any, len(c.Extra)+len(aux.Extra))
		for k, v := range c.Extra {
			extra[k] = v
		}
		for k, v := range aux.Extra {
			extra[k] = v
		}
		next.Extra = extra
	}
	return next
}
