package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeResolve(ctx, &domain.NodeEvent{NodeType: domain.NodeTypeAtom, Visible: true})
	hooks.OnNodeResolve(ctx, &domain.NodeEvent{NodeType: domain.NodeTypeAtom, Visible: true, Loading: true})
	hooks.OnFetch(ctx, &domain.FetchEvent{Source: "rest", Duration: time.Millisecond})
	hooks.OnFetch(ctx, &domain.FetchEvent{Source: "rest", CacheHit: true})
	hooks.OnFetch(ctx, &domain.FetchEvent{Source: "rest", Err: errors.New("boom")})
	hooks.OnActionEnd(ctx, &domain.ActionEvent{Action: domain.ActionNavigate, Success: true})
	hooks.OnActionEnd(ctx, &domain.ActionEvent{Action: domain.ActionNavigate, Skipped: true, Success: true})

	want := `
# HELP canopy_fetches_total Settled data requirements by source and outcome.
# TYPE canopy_fetches_total counter
canopy_fetches_total{outcome="cache_hit",source="rest"} 1
canopy_fetches_total{outcome="error",source="rest"} 1
canopy_fetches_total{outcome="ok",source="rest"} 1
`
	require.NoError(t, testutil.CollectAndCompare(reg, strings.NewReader(want), "canopy_fetches_total"))

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "canopy_fetch_duration_seconds"))
	wantActions := `
# HELP canopy_actions_total Finished action steps by type and outcome.
# TYPE canopy_actions_total counter
canopy_actions_total{action_type="navigate",outcome="ok"} 1
canopy_actions_total{action_type="navigate",outcome="skipped"} 1
`
	require.NoError(t, testutil.CollectAndCompare(reg, strings.NewReader(wantActions), "canopy_actions_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "canopy_nodes_resolved_total"))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnFetch(ctx, &domain.FetchEvent{NodeID: "n", Key: "k", Err: errors.New("offline")})
	hooks.OnActionEnd(ctx, &domain.ActionEvent{ActionID: "a", Success: true})

	out := buf.String()
	assert.Contains(t, out, "fetch failed")
	assert.Contains(t, out, "offline")
	assert.NotContains(t, out, "action end")
}
