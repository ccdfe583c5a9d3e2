package dsl

import "github.com/aretw0/canopy/pkg/domain"

// ActionBuilder provides a fluent API for one step of an action chain.
type ActionBuilder struct {
	action    domain.Action
	onSuccess []*ActionBuilder
	onError   []*ActionBuilder
}

// Action creates a step of any type, including host-defined ones.
func Action(id string, typ domain.ActionType, params map[string]any) *ActionBuilder {
	return &ActionBuilder{action: domain.Action{ID: id, Type: typ, Params: params}}
}

// UpdateState replaces keys of the target node's internal state.
func UpdateState(id, targetNodeID string, state map[string]any) *ActionBuilder {
	return Action(id, domain.ActionUpdateState, map[string]any{"targetNodeId": targetNodeID, "state": state})
}

// UpdateNodeState writes a live override patch on the target node.
func UpdateNodeState(id, targetNodeID string, patch map[string]any) *ActionBuilder {
	return Action(id, domain.ActionUpdateNodeState, map[string]any{"targetNodeId": targetNodeID, "patch": patch})
}

// OpenModal shows a hidden node.
func OpenModal(id, modalID string) *ActionBuilder {
	return Action(id, domain.ActionOpenModal, map[string]any{"modalId": modalID})
}

// CloseModal hides a node.
func CloseModal(id, modalID string) *ActionBuilder {
	return Action(id, domain.ActionCloseModal, map[string]any{"modalId": modalID})
}

// Navigate asks the host to route to url.
func Navigate(id, url string) *ActionBuilder {
	return Action(id, domain.ActionNavigate, map[string]any{"url": url})
}

// Submit sends body to endpoint with the configured submitter.
func Submit(id, endpoint string, body any) *ActionBuilder {
	return Action(id, domain.ActionSubmitData, map[string]any{"endpoint": endpoint, "body": body})
}

// When guards the step; all conditions must hold unless Any is used.
func (a *ActionBuilder) When(conds ...domain.Condition) *ActionBuilder {
	a.action.Conditions = append(a.action.Conditions, conds...)
	return a
}

// Any switches the conditions to OR logic.
func (a *ActionBuilder) Any() *ActionBuilder {
	a.action.ConditionLogic = domain.LogicOr
	return a
}

// Delay suspends the step for ms milliseconds before it runs.
func (a *ActionBuilder) Delay(ms int) *ActionBuilder {
	a.action.DelayMs = ms
	return a
}

// Then appends steps run after success.
func (a *ActionBuilder) Then(next ...*ActionBuilder) *ActionBuilder {
	a.onSuccess = append(a.onSuccess, next...)
	return a
}

// Catch appends steps run after failure.
func (a *ActionBuilder) Catch(next ...*ActionBuilder) *ActionBuilder {
	a.onError = append(a.onError, next...)
	return a
}

// Build returns the domain.Action with its branches.
func (a *ActionBuilder) Build() domain.Action {
	action := a.action
	action.OnSuccess = buildActions(a.onSuccess)
	action.OnError = buildActions(a.onError)
	return action
}

func buildActions(in []*ActionBuilder) []domain.Action {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Action, 0, len(in))
	for _, a := range in {
		out = append(out, a.Build())
	}
	return out
}
