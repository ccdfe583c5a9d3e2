package domain

// SubmitRequest is a form or payload submission performed by the submitData action.
type SubmitRequest struct {
	Endpoint string            `json:"endpoint" mapstructure:"endpoint"`
	Method   string            `json:"method,omitempty" mapstructure:"method"`
	Headers  map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	Body     any               `json:"body,omitempty" mapstructure:"body"`
}

// SubmitResponse is the outcome of a submission.
// Success requires a 2xx status and no semantic errors in the payload.
type SubmitResponse struct {
	StatusCode int          `json:"statusCode"`
	Data       any          `json:"data,omitempty"`
	Errors     []QueryError `json:"errors,omitempty"`
}

// OK reports whether the submission succeeded.
func (r *SubmitResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300 && len(r.Errors) == 0
}

// NavigateRequest asks the host to route somewhere.
type NavigateRequest struct {
	URL    string `json:"url"`
	NewTab bool   `json:"newTab,omitempty"`
	// Preview is set when the page runs inside an embedded editor preview;
	// hosts usually hand the route to the parent frame instead of leaving.
	Preview bool `json:"preview,omitempty"`
}

// SessionInfo is what the session collaborator exposes to bindings.
type SessionInfo struct {
	User map[string]any `json:"user,omitempty"`
	Shop map[string]any `json:"shop,omitempty"`
}
