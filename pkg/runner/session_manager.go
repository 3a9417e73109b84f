package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// begin resumes the configured session when asked to and it is still open.
// Otherwise it starts flowRef from scratch.
func (r *Runner) begin(ctx context.Context, rt ports.Runtime, handler IOHandler, flowRef string) (*domain.RunResult, error) {
	if r.Resume && r.SessionID != "" {
		sess, err := rt.Session(ctx, r.SessionID)
		switch {
		case err == nil && !sess.Status.Terminal():
			_ = handler.SystemOutput(ctx, fmt.Sprintf("resuming session %s at %s", sess.ID, sess.CurrentStepID))
			return &domain.RunResult{Session: sess}, nil
		case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
			return nil, fmt.Errorf("failed to load session %s: %w", r.SessionID, err)
		}
	}

	res, err := rt.Start(ctx, flowRef, r.SessionID, r.Bindings)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", flowRef, err)
	}
	return res, nil
}
