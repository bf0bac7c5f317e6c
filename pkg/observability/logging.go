package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/mjtree/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that log every event at debug level,
// and failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnParse: func(ctx context.Context, e *domain.ParseEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "parse failed", "bytes", e.Bytes, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "parse", "bytes", e.Bytes, "nodes", e.Nodes, "duration", e.Duration)
		},
		OnSerialize: func(ctx context.Context, e *domain.SerializeEvent) {
			logger.DebugContext(ctx, "serialize", "nodes", e.Nodes, "bytes", e.Bytes)
		},
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			logger.DebugContext(ctx, "mutation",
				"op", e.Op,
				"node_id", e.NodeID,
				"type", e.NodeType,
				"parent_id", e.ParentID,
				"ok", e.OK,
			)
		},
		OnValidate: func(ctx context.Context, e *domain.ValidationEvent) {
			logger.DebugContext(ctx, "validate", "nodes", e.Nodes, "violations", e.Violations)
		},
		OnRender: func(ctx context.Context, e *domain.RenderEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "render failed", "token", e.Token, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "render",
				"token", e.Token,
				"duration", e.Duration,
				"errors", e.Errors,
				"stale", e.Stale,
			)
		},
	}
}
