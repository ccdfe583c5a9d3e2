package domain

// ActionType is the closed set of side effects an action chain can request.
type ActionType string

const (
	ActionUpdateNodeState ActionType = "updateNodeState"
	ActionUpdateState     ActionType = "updateState"
	ActionOpenModal       ActionType = "openModal"
	ActionCloseModal      ActionType = "closeModal"
	ActionResetForm       ActionType = "resetForm"
	ActionAddItemToCart   ActionType = "addItemToCart"
	ActionNavigate        ActionType = "navigate"
	ActionExecuteRQL      ActionType = "executeRQL"
	ActionSubmitData      ActionType = "submitData"
	ActionRefetchPageData ActionType = "refetchPageData"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionUpdateNodeState,
	ActionUpdateState,
	ActionOpenModal,
	ActionCloseModal,
	ActionResetForm,
	ActionAddItemToCart,
	ActionNavigate,
	ActionExecuteRQL,
	ActionSubmitData,
	ActionRefetchPageData,
}

// Action is one step of an event-triggered chain.
type Action struct {
	ID     string         `json:"id" yaml:"id"`
	Type   ActionType     `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	Conditions     []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ConditionLogic string      `json:"conditionLogic,omitempty" yaml:"conditionLogic,omitempty"`

	// DelayMs suspends the step before its side effect.
	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`

	OnSuccess []Action `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty"`
	OnError   []Action `json:"onError,omitempty" yaml:"onError,omitempty"`
}

// AuxContext is the per-trigger context made available to action params.
// Extra keys are spread into the evaluation scope as-is.
type AuxContext struct {
	FormData      map[string]any `json:"formData,omitempty"`
	ActionResults map[string]any `json:"actionResults,omitempty"`
	Event         map[string]any `json:"event,omitempty"`
	Error         map[string]any `json:"error,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// WithResult returns a copy of a whose ActionResults also holds value under key.
func (a AuxContext) WithResult(key string, value any) AuxContext {
	next := a
	next.ActionResults = make(map[string]any, len(a.ActionResults)+1)
	for k, v := range a.ActionResults {
		next.ActionResults[k] = v
	}
	if key != "" {
		next.ActionResults[key] = value
	}
	return next
}
