package domain

import "time"

// Data source kinds understood by the orchestrator.
const (
	SourceContract = "contract"
	SourceREST     = "rest"
	SourceGraphQL  = "graphql"
	SourceMock     = "mock"
	SourceStatic   = "static"
)

// DataRequirementConfig declares one auxiliary async data need of a node.
type DataRequirementConfig struct {
	Key             string     `json:"key" yaml:"key"`
	Source          DataSource `json:"source" yaml:"source"`
	Blocking        *bool      `json:"blocking,omitempty" yaml:"blocking,omitempty"`
	CacheDurationMs int64      `json:"cacheDurationMs,omitempty" yaml:"cacheDurationMs,omitempty"`
	DefaultValue    any        `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// IsBlocking reports whether the requirement holds the node in a loading state.
// Requirements are blocking unless explicitly disabled.
func (r DataRequirementConfig) IsBlocking() bool {
	return r.Blocking == nil || *r.Blocking
}

// CacheTTL returns the cache duration; zero means the entry never expires.
func (r DataRequirementConfig) CacheTTL() time.Duration {
	if r.CacheDurationMs <= 0 {
		return 0
	}
	return time.Duration(r.CacheDurationMs) * time.Millisecond
}

// DataSource describes a query. Which fields apply depends on Type.
type DataSource struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	// contract
	Contract string         `json:"contract,omitempty" yaml:"contract,omitempty" mapstructure:"contract"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`

	// rest and graphql
	Endpoint  string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Method    string            `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Body      any               `json:"body,omitempty" yaml:"body,omitempty" mapstructure:"body"`
	Query     string            `json:"query,omitempty" yaml:"query,omitempty" mapstructure:"query"`
	Variables map[string]any    `json:"variables,omitempty" yaml:"variables,omitempty" mapstructure:"variables"`
	DataPath  string            `json:"dataPath,omitempty" yaml:"dataPath,omitempty" mapstructure:"dataPath"`

	// mock and static
	Data    any    `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
	DelayMs int64  `json:"delayMs,omitempty" yaml:"delayMs,omitempty" mapstructure:"delayMs"`
	Fail    string `json:"fail,omitempty" yaml:"fail,omitempty" mapstructure:"fail"`
}

// QueryDescription is one named query sent to the query transport.
type QueryDescription struct {
	Contract string         `json:"contract"`
	Params   map[string]any `json:"params,omitempty"`
}

// QueryError is a semantic error returned by the query transport.
type QueryError struct {
	QueryKey string `json:"queryKey,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
}

// QueryResponse is the envelope returned by the query transport.
type QueryResponse struct {
	Data   map[string]any `json:"data"`
	Errors []QueryError   `json:"errors,omitempty"`
}

// CacheEntry is a cached requirement outcome: either a value or an error message.
type CacheEntry struct {
	Value    any           `json:"value,omitempty"`
	Err      string        `json:"err,omitempty"`
	StoredAt time.Time     `json:"storedAt"`
	TTL      time.Duration `json:"ttl,omitempty"`
}

// Expired reports whether the entry is stale at now. Zero TTL never expires.
func (c CacheEntry) Expired(now time.Time) bool {
	if c.TTL <= 0 {
		return false
	}
	return now.Sub(c.StoredAt) >= c.TTL
}

// RequirementStatus is the per-node view of its data requirements.
type RequirementStatus struct {
	// Values holds the fetched value, or the default on failure, per requirement key.
	Values map[string]any
	// Errors holds failure messages per requirement key.
	Errors map[string]string
	// Loading is true while a blocking requirement is still in flight.
	Loading bool
}
