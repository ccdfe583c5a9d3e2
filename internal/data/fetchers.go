package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
)

// Fetcher retrieves the value described by a resolved data source.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.DataSource) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src domain.DataSource) (any, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, src domain.DataSource) (any, error) {
	return f(ctx, src)
}

// MockFetcher returns src.Data after src.DelayMs, or fails with src.Fail.
type MockFetcher struct{}

// Fetch implements Fetcher.
func (MockFetcher) Fetch(ctx context.Context, src domain.DataSource) (any, error) {
	if src.DelayMs > 0 {
		timer := time.NewTimer(time.Duration(src.DelayMs) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if src.Fail != "" {
		return nil, errors.New(src.Fail)
	}
	return domain.CloneValue(src.Data), nil
}

// HTTPFetcher serves rest and graphql sources.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Fetch implements Fetcher.
func (f HTTPFetcher) Fetch(ctx context.Context, src domain.DataSource) (any, error) {
	if src.Endpoint == "" {
		return nil, fmt.Errorf("%s source has no endpoint", src.Type)
	}
	switch src.Type {
	case domain.SourceGraphQL:
		return f.graphql(ctx, src)
	default:
		return f.rest(ctx, src)
	}
}

func (f HTTPFetcher) rest(ctx context.Context, src domain.DataSource) (any, error) {
	method := strings.ToUpper(src.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if src.Body != nil && method != http.MethodGet {
		raw, err := json.Marshal(src.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	var out any
	if err := f.do(ctx, method, src.Endpoint, src.Headers, body, &out); err != nil {
		return nil, err
	}
	return extract(out, src.DataPath), nil
}

func (f HTTPFetcher) graphql(ctx context.Context, src domain.DataSource) (any, error) {
	raw, err := json.Marshal(map[string]any{"query": src.Query, "variables": src.Variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var out struct {
		Data   any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := f.do(ctx, http.MethodPost, src.Endpoint, src.Headers, bytes.NewReader(raw), &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}
	return extract(out.Data, src.DataPath), nil
}

func (f HTTPFetcher) do(ctx context.Context, method, url string, headers map[string]string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func extract(v any, path string) any {
	if path == "" {
		return v
	}
	return expr.Get(v, path, nil)
}
