package ports

import (
	"context"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// SessionStore defines the interface for persisting session cursors.
// This allows for durable execution across webhook-driven turns.
type SessionStore interface {
	// Save persists the session.
	// The stored version must equal session.Version (zero for a new session),
	// otherwise domain.ErrConflict is returned. On success the store increments
	// session.Version in place.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session with the given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
