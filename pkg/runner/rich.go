package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
)

// EventType selects what an Event does to the session.
type EventType string

const (
	EventRender   EventType = "render"
	EventTrigger  EventType = "trigger"
	EventViewport EventType = "viewport"
	EventLocale   EventType = "locale"
	EventForm     EventType = "form"
)

// ErrUnknownEvent is returned for events with an unsupported type.
var ErrUnknownEvent = errors.New("unknown event type")

// ErrInvalidEvent is returned when an event lacks the fields its type needs.
var ErrInvalidEvent = errors.New("invalid event")

// Event is one host input. Which fields apply depends on Type.
type Event struct {
	Type EventType `json:"type"`

	// trigger
	NodeID string            `json:"nodeId,omitempty"`
	Event  string            `json:"event,omitempty"`
	Aux    domain.AuxContext `json:"aux"`

	// viewport
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Breakpoint string `json:"breakpoint,omitempty"`

	// locale
	Locale string `json:"locale,omitempty"`

	// form
	FormID string         `json:"formId,omitempty"`
	Values map[string]any `json:"values,omitempty"`
}

// Response combines the outcome of an event and the re-rendered page for rich
// clients (HTTP, JSON lines). Report is only set for trigger events.
type Response struct {
	Report *canopy.Report `json:"report,omitempty"`
	Tree   *canopy.Tree   `json:"tree"`
}

// Apply performs ev on the session and immediately renders the result.
// With settle the render waits for pending fetches (see canopy.Session.Render).
func Apply(ctx context.Context, s *canopy.Session, ev Event, settle bool) (*Response, error) {
	resp := &Response{}
	switch ev.Type {
	case EventRender, "":
	case EventTrigger:
		if ev.NodeID == "" || ev.Event == "" {
			return nil, fmt.Errorf("%w: trigger needs nodeId and event", ErrInvalidEvent)
		}
		rep, err := s.Trigger(ctx, ev.NodeID, ev.Event, sanitizeAux(ev.Aux))
		if err != nil {
			return nil, err
		}
		resp.Report = rep
	case EventViewport:
		s.SetViewport(ev.Width, ev.Height)
		s.SetBreakpoint(ev.Breakpoint)
	case EventLocale:
		s.SetLocale(ev.Locale)
	case EventForm:
		if ev.FormID == "" {
			return nil, fmt.Errorf("%w: form needs formId", ErrInvalidEvent)
		}
		s.SetFormValues(ev.FormID, SanitizeMap(ev.Values))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	tree, err := render(ctx, s, settle)
	resp.Tree = tree
	return resp, err
}

// TriggerAndRender runs a node's event handlers and renders the page.
func TriggerAndRender(ctx context.Context, s *canopy.Session, nodeID, event string, aux domain.AuxContext) (*Response, error) {
	return Apply(ctx, s, Event{Type: EventTrigger, NodeID: nodeID, Event: event, Aux: aux}, true)
}

func render(ctx context.Context, s *canopy.Session, settle bool) (*canopy.Tree, error) {
	if !settle {
		return s.Resolve(ctx), nil
	}
	return s.Render(ctx)
}

func sanitizeAux(aux domain.AuxContext) domain.AuxContext {
	return domain.AuxContext{
		FormData:      SanitizeMap(aux.FormData),
		ActionResults: SanitizeMap(aux.ActionResults),
		Event:         SanitizeMap(aux.Event),
		Error:         SanitizeMap(aux.Error),
		Extra:         SanitizeMap(aux.Extra),
	}
}
