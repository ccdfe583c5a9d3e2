package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeResolve: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node resolved",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"visible", e.Visible,
				"loading", e.Loading,
			)
		},
		OnFetch: func(ctx context.Context, e *domain.FetchEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "fetch failed", "session_id", e.SessionID, "node_id", e.NodeID, "key", e.Key, "source", e.Source, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "fetch settled", "session_id", e.SessionID, "node_id", e.NodeID, "key", e.Key, "cache_hit", e.CacheHit, "duration", e.Duration)
		},
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action start", "run_id", e.RunID, "action_id", e.ActionID, "action_type", e.Action)
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "action failed", "run_id", e.RunID, "action_id", e.ActionID, "action_type", e.Action, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "action end", "run_id", e.RunID, "action_id", e.ActionID, "skipped", e.Skipped, "duration", e.Duration)
		},
	}
}
