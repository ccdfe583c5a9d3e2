package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeResolve EventType = "node_resolve"
	EventFetch       EventType = "fetch"
	EventActionStart EventType = "action_start"
	EventActionEnd   EventType = "action_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// NodeEvent is emitted once per resolved node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
	Visible  bool     `json:"visible"`
	Loading  bool     `json:"loading"`
}

// FetchEvent is emitted when a data requirement settles.
type FetchEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Key      string        `json:"key"`
	Source   string        `json:"source"`
	CacheHit bool          `json:"cache_hit"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ActionEvent is emitted around each action step.
type ActionEvent struct {
	EventBase
	RunID    string        `json:"run_id"`
	NodeID   string        `json:"node_id"`
	ActionID string        `json:"action_id"`
	Action   ActionType    `json:"action"`
	Skipped  bool          `json:"skipped,omitempty"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for interpreter observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnNodeResolve func(context.Context, *NodeEvent)
	OnFetch       func(context.Context, *FetchEvent)
	OnActionStart func(context.Context, *ActionEvent)
	OnActionEnd   func(context.Context, *ActionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeResolve: chain(h.OnNodeResolve, other.OnNodeResolve),
		OnFetch:       chain(h.OnFetch, other.OnFetch),
		OnActionStart: chain(h.OnActionStart, other.OnActionStart),
		OnActionEnd:   chain(h.OnActionEnd, other.OnActionEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
