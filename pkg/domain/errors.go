package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrPageNotFound is returned when a page document cannot be found.
var ErrPageNotFound = errors.New("page not found")

// ErrNodeNotFound is returned when a node id is not part of the page.
var ErrNodeNotFound = errors.New("node not found")

// ErrUnsupportedSource is returned for data source kinds the orchestrator cannot fetch.
var ErrUnsupportedSource = errors.New("unsupported data source")

// ErrUnsupportedNode marks node types or kinds without a registered handler.
var ErrUnsupportedNode = errors.New("unsupported node type")

// ErrPlaceholderCycle is returned when a loading placeholder refers back to a node on its own path.
var ErrPlaceholderCycle = errors.New("placeholder cycle")

// ErrMaxDepth is returned when resolution nests deeper than the configured limit.
var ErrMaxDepth = errors.New("maximum resolution depth exceeded")

// ErrUnknownAction is returned for action types without a handler.
var ErrUnknownAction = errors.New("unknown action type")

// ErrCollaboratorMissing is returned when an action needs a host collaborator that was not configured.
var ErrCollaboratorMissing = errors.New("collaborator not configured")

// FetchError describes a failed data requirement.
type FetchError struct {
	NodeID string
	Key    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("data requirement '%s' of node '%s' failed: %v", e.Key, e.NodeID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ActionError describes a failed action step.
type ActionError struct {
	ActionID string
	Type     ActionType
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action '%s' (%s) failed: %v", e.ActionID, e.Type, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
