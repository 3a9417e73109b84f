package ports

import (
	"context"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// Runtime defines the entry points of the flow engine.
// This is the interface used by driving adapters (HTTP, scheduler, console runner).
type Runtime interface {
	// Start runs flowRef for sessionID from its start step until the first suspension.
	Start(ctx context.Context, flowRef, sessionID string, bindings map[string]any) (*domain.RunResult, error)

	// Resume answers the question the session is suspended on and continues the run.
	Resume(ctx context.Context, sessionID, stepID, answer, optionID string) (*domain.RunResult, error)

	// Inbound applies a contact message: it answers the pending question or
	// starts flowRef when the session does not exist or has ended. It returns
	// a nil result when the message was ignored.
	Inbound(ctx context.Context, flowRef, sessionID, text, optionID string, bindings map[string]any) (*domain.RunResult, error)

	// Wake continues a session suspended on a wait step.
	Wake(ctx context.Context, sessionID string) (*domain.RunResult, error)

	// Cancel moves the session to the terminal cancelled status.
	Cancel(ctx context.Context, sessionID string) error

	// Session returns the current snapshot of a session.
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
}
