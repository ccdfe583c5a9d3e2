package observability

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics turns lifecycle events into Prometheus series.
type Metrics struct {
	nodes          *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_nodes_resolved_total",
			Help: "Resolved nodes by type and outcome.",
		}, []string{"node_type", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_fetches_total",
			Help: "Settled data requirements by source and outcome.",
		}, []string{"source", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_fetch_duration_seconds",
			Help:    "Duration of data requirement fetches (cache misses only).",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_actions_total",
			Help: "Finished action steps by type and outcome.",
		}, []string{"action_type", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_action_duration_seconds",
			Help:    "Duration of action steps, delays included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action_type"}),
	}
	for _, c := range []prometheus.Collector{m.nodes, m.fetches, m.fetchDuration, m.actions, m.actionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeResolve: func(ctx context.Context, e *domain.NodeEvent) {
			outcome := "visible"
			switch {
			case e.Loading:
				outcome = "loading"
			case !e.Visible:
				outcome = "hidden"
			}
			m.nodes.WithLabelValues(string(e.NodeType), outcome).Inc()
		},
		OnFetch: func(ctx context.Context, e *domain.FetchEvent) {
			outcome := "ok"
			switch {
			case e.Err != nil:
				outcome = "error"
			case e.CacheHit:
				outcome = "cache_hit"
			}
			m.fetches.WithLabelValues(e.Source, outcome).Inc()
			if !e.CacheHit {
				m.fetchDuration.WithLabelValues(e.Source).Observe(e.Duration.Seconds())
			}
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			outcome := "ok"
			switch {
			case e.Skipped:
				outcome = "skipped"
			case !e.Success:
				outcome = "error"
			}
			m.actions.WithLabelValues(string(e.Action), outcome).Inc()
			if !e.Skipped {
				m.actionDuration.WithLabelValues(string(e.Action)).Observe(e.Duration.Seconds())
			}
		},
	}
}
