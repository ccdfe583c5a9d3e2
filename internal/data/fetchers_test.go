package data_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/data"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFetcher(t *testing.T) {
	f := data.MockFetcher{}

	v, err := f.Fetch(context.Background(), domain.DataSource{Data: map[string]any{"a": float64(1)}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	_, err = f.Fetch(context.Background(), domain.DataSource{Fail: "offline"})
	assert.EqualError(t, err, "offline")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, domain.DataSource{DelayMs: 1000})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher_REST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"items": []any{"x", "y"}}})
		case "/echo":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{"method": r.Method, "body": body})
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := data.HTTPFetcher{Client: srv.Client()}
	ctx := context.Background()

	v, err := f.Fetch(ctx, domain.DataSource{
		Type:     domain.SourceREST,
		Endpoint: srv.URL + "/orders",
		Headers:  map[string]string{"Authorization": "Bearer t"},
		DataPath: "result.items",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, v)

	v, err = f.Fetch(ctx, domain.DataSource{
		Type:     domain.SourceREST,
		Endpoint: srv.URL + "/echo",
		Method:   "post",
		Body:     map[string]any{"q": "shoes"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"method": "POST", "body": map[string]any{"q": "shoes"}}, v)

	_, err = f.Fetch(ctx, domain.DataSource{Type: domain.SourceREST, Endpoint: srv.URL + "/missing"})
	assert.ErrorContains(t, err, "404")

	_, err = f.Fetch(ctx, domain.DataSource{Type: domain.SourceREST})
	assert.ErrorContains(t, err, "no endpoint")
}

func TestHTTPFetcher_GraphQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Query == "broken" {
			_ = json.NewEncoder(w).Encode(map[string]any{"errors": []any{map[string]any{"message": "syntax"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"shop": map[string]any{"name": req.Variables["id"]}}})
	}))
	defer srv.Close()

	f := data.HTTPFetcher{Client: srv.Client()}

	v, err := f.Fetch(context.Background(), domain.DataSource{
		Type:      domain.SourceGraphQL,
		Endpoint:  srv.URL,
		Query:     "query Shop($id: ID!) { shop(id: $id) { name } }",
		Variables: map[string]any{"id": "acme"},
		DataPath:  "shop.name",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", v)

	_, err = f.Fetch(context.Background(), domain.DataSource{Type: domain.SourceGraphQL, Endpoint: srv.URL, Query: "broken"})
	assert.ErrorContains(t, err, "syntax")
}

type recordingTransport struct {
	mu      sync.Mutex
	batches []map[string]domain.QueryDescription
}

func (r *recordingTransport) Execute(ctx context.Context, queries map[string]domain.QueryDescription) (*domain.QueryResponse, error) {
	r.mu.Lock()
	r.batches = append(r.batches, queries)
	r.mu.Unlock()

	resp := &domain.QueryResponse{Data: map[string]any{}}
	for key, q := range queries {
		if q.Contract == "forbidden" {
			resp.Errors = append(resp.Errors, domain.QueryError{QueryKey: key, Message: "denied", Code: "403"})
			continue
		}
		resp.Data[key] = map[string]any{"contract": q.Contract, "params": q.Params}
	}
	return resp, nil
}

func TestContractFetcher_Batches(t *testing.T) {
	transport := &recordingTransport{}
	f := data.NewContractFetcher(transport, 20*time.Millisecond)

	type outcome struct {
		v   any
		err error
	}
	results := make([]outcome, 3)
	sources := []domain.DataSource{
		{Type: domain.SourceContract, Contract: "orders", Params: map[string]any{"page": float64(1)}},
		{Type: domain.SourceContract, Contract: "profile"},
		{Type: domain.SourceContract, Contract: "forbidden"},
	}

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.Fetch(context.Background(), src)
			results[i] = outcome{v, err}
		}()
	}
	wg.Wait()

	transport.mu.Lock()
	require.Len(t, transport.batches, 1)
	assert.Len(t, transport.batches[0], 3)
	transport.mu.Unlock()

	require.NoError(t, results[0].err)
	assert.Equal(t, map[string]any{"contract": "orders", "params": map[string]any{"page": float64(1)}}, results[0].v)
	require.NoError(t, results[1].err)
	assert.EqualError(t, results[2].err, "403: denied")

	_, err := f.Fetch(context.Background(), domain.DataSource{Type: domain.SourceContract})
	assert.ErrorContains(t, err, "no contract")
}

func TestOrchestrator_ContractThroughTransport(t *testing.T) {
	transport := &recordingTransport{}
	o := data.New(data.WithFetcher(domain.SourceContract, data.NewContractFetcher(transport, 0)))
	reqs := []domain.DataRequirementConfig{
		{Key: "orders", Source: domain.DataSource{Type: domain.SourceContract, Contract: "orders"}},
		{Key: "profile", Source: domain.DataSource{Type: domain.SourceContract, Contract: "profile"}},
	}

	o.Ensure(context.Background(), "dash", reqs)
	wait(t, o)
	st := o.Ensure(context.Background(), "dash", reqs)

	assert.False(t, st.Loading)
	assert.Equal(t, "orders", st.Values["orders"].(map[string]any)["contract"])
	assert.Equal(t, "profile", st.Values["profile"].(map[string]any)["contract"])
}

type panickingTransport struct{}

func (panickingTransport) Execute(context.Context, map[string]domain.QueryDescription) (*domain.QueryResponse, error) {
	panic("transport bug")
}

func TestContractFetcher_TransportPanicBecomesError(t *testing.T) {
	f := data.NewContractFetcher(panickingTransport{}, 0)

	_, err := f.Fetch(context.Background(), domain.DataSource{Type: domain.SourceContract, Contract: "orders"})
	assert.ErrorContains(t, err, "transport bug")

	o := data.New(data.WithFetcher(domain.SourceContract, f))
	reqs := []domain.DataRequirementConfig{{Key: "orders", Source: domain.DataSource{Type: domain.SourceContract, Contract: "orders"}, DefaultValue: []any{}}}
	o.Ensure(context.Background(), "dash", reqs)
	wait(t, o)

	st := o.Ensure(context.Background(), "dash", reqs)
	assert.False(t, st.Loading)
	assert.Equal(t, []any{}, st.Values["orders"])
	assert.Contains(t, st.Errors["orders"], "transport bug")
}
