package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryClient_Execute(t *testing.T) {
	var got struct {
		Queries map[string]domain.QueryDescription `json:"queries"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":{"products":[{"id":1}]},"errors":[{"queryKey":"user","message":"denied"}]}`))
	}))
	defer srv.Close()

	client := NewQueryClient(srv.URL, WithHeader("Authorization", "Bearer t"))
	resp, err := client.Execute(context.Background(), map[string]domain.QueryDescription{
		"products": {Contract: "catalog.list", Params: map[string]any{"limit": float64(2)}},
		"user":     {Contract: "user.me"},
	})
	require.NoError(t, err)

	assert.Equal(t, "catalog.list", got.Queries["products"].Contract)
	assert.Equal(t, float64(2), got.Queries["products"].Params["limit"])
	assert.Contains(t, resp.Data, "products")
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "user", resp.Errors[0].QueryKey)
}

func TestQueryClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewQueryClient(srv.URL).Execute(context.Background(), map[string]domain.QueryDescription{"a": {Contract: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSubmitClient_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "1", r.Header.Get("X-Form"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Write([]byte(`{"data":{"echo":"` + body["email"].(string) + `"}}`))
		case "/semantic":
			w.Write([]byte(`{"errors":[{"message":"email taken"}]}`))
		case "/plain":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`invalid`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewSubmitClient()
	ctx := context.Background()

	resp, err := client.Submit(ctx, domain.SubmitRequest{
		Endpoint: srv.URL + "/ok",
		Method:   "put",
		Headers:  map[string]string{"X-Form": "1"},
		Body:     map[string]any{"email": "a@b.c"},
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, map[string]any{"echo": "a@b.c"}, resp.Data)

	resp, err = client.Submit(ctx, domain.SubmitRequest{Endpoint: srv.URL + "/semantic"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "email taken", resp.Errors[0].Message)

	resp, err = client.Submit(ctx, domain.SubmitRequest{Endpoint: srv.URL + "/plain"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "invalid", resp.Data)

	resp, err = client.Submit(ctx, domain.SubmitRequest{Endpoint: srv.URL + "/empty"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}
