package observability

import (
	"context"
	"log/slog"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// Combine merges hook sets into one. Each hook runs in argument order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var enter, leave []func(context.Context, *domain.StepEvent)
	var session []func(context.Context, *domain.SessionEvent)
	for _, h := range hooks {
		if h.OnStepEnter != nil {
			enter = append(enter, h.OnStepEnter)
		}
		if h.OnStepLeave != nil {
			leave = append(leave, h.OnStepLeave)
		}
		if h.OnSessionEvent != nil {
			session = append(session, h.OnSessionEvent)
		}
	}

	var out domain.LifecycleHooks
	if len(enter) > 0 {
		out.OnStepEnter = func(ctx context.Context, e *domain.StepEvent) {
			for _, fn := range enter {
				fn(ctx, e)
			}
		}
	}
	if len(leave) > 0 {
		out.OnStepLeave = func(ctx context.Context, e *domain.StepEvent) {
			for _, fn := range leave {
				fn(ctx, e)
			}
		}
	}
	if len(session) > 0 {
		out.OnSessionEvent = func(ctx context.Context, e *domain.SessionEvent) {
			for _, fn := range session {
				fn(ctx, e)
			}
		}
	}
	return out
}

// LoggingHooks logs every step and session event at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "flow_id", e.FlowID, "session_id", e.SessionID, "step_id", e.StepID, "kind", e.StepKind)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_leave", "flow_id", e.FlowID, "session_id", e.SessionID, "step_id", e.StepID, "actions", len(e.Actions))
		},
		OnSessionEvent: func(ctx context.Context, e *domain.SessionEvent) {
			attrs := []any{"flow_id", e.FlowID, "session_id", e.SessionID, "step_id", e.StepID}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.DebugContext(ctx, string(e.Type), attrs...)
		},
	}
}
