package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
)

// ClientOption configures QueryClient and SubmitClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// WithClient sets the underlying *http.Client.
func WithClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.client = c
	}
}

// WithHeader adds a header to every request (auth tokens, tenant ids).
func WithHeader(key, value string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.headers[key] = value
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = l
	}
}

func newClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{
		client:  http.DefaultClient,
		headers: make(map[string]string),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (cfg clientConfig) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	return cfg.client.Do(req)
}

// QueryClient sends batched contract queries to a single query endpoint.
// The request body is {"queries": {key: {contract, params}}} and the
// response is a domain.QueryResponse envelope.
type QueryClient struct {
	endpoint string
	cfg      clientConfig
}

// NewQueryClient creates a QueryClient for endpoint.
func NewQueryClient(endpoint string, opts ...ClientOption) *QueryClient {
	return &QueryClient{endpoint: endpoint, cfg: newClientConfig(opts)}
}

// Execute implements ports.QueryTransport.
func (c *QueryClient) Execute(ctx context.Context, queries map[string]domain.QueryDescription) (*domain.QueryResponse, error) {
	body := map[string]any{"queries": queries}
	resp, err := c.cfg.do(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("query transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("query transport: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out domain.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("query transport: decode response: %w", err)
	}
	c.cfg.logger.Debug("queries executed", "count", len(queries), "errors", len(out.Errors))
	return &out, nil
}

// SubmitClient performs submitData calls over HTTP.
type SubmitClient struct {
	cfg clientConfig
}

// NewSubmitClient creates a SubmitClient.
func NewSubmitClient(opts ...ClientOption) *SubmitClient {
	return &SubmitClient{cfg: newClientConfig(opts)}
}

// Submit implements ports.Submitter. Non-2xx statuses are returned in the
// response, not as an error; only transport failures are errors.
func (c *SubmitClient) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}
	cfg := c.cfg
	if len(req.Headers) > 0 {
		cfg.headers = make(map[string]string, len(c.cfg.headers)+len(req.Headers))
		for k, v := range c.cfg.headers {
			cfg.headers[k] = v
		}
		for k, v := range req.Headers {
			cfg.headers[k] = v
		}
	}

	resp, err := cfg.do(ctx, method, req.Endpoint, req.Body)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", req.Endpoint, err)
	}
	defer resp.Body.Close()

	out := &domain.SubmitResponse{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("submit %s: read response: %w", req.Endpoint, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	var envelope struct {
		Data   any                 `json:"data"`
		Errors []domain.QueryError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && (envelope.Data != nil || envelope.Errors != nil) {
		out.Data = envelope.Data
		out.Errors = envelope.Errors
		return out, nil
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err == nil {
		out.Data = plain
	} else {
		out.Data = string(raw)
	}
	c.cfg.logger.Debug("submission done", "endpoint", req.Endpoint, "status", resp.StatusCode)
	return out, nil
}
