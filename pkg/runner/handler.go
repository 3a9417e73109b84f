package runner

import (
	"context"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (chat-like console) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the actions of one engine call to the user.
	Output(ctx context.Context, actions []domain.Action) error

	// Input reads the next user message.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from the messages the flow sends.
	SystemOutput(ctx context.Context, msg string) error
}
