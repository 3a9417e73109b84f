package ports

import (
	"context"
	"errors"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// ActionDispatcher defines how side-effects are executed.
// The engine emits actions, and the host implements this interface to perform them.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, sessionID string, action domain.Action) error
}

// DispatcherFunc adapts a function to ActionDispatcher.
type DispatcherFunc func(ctx context.Context, sessionID string, action domain.Action) error

func (f DispatcherFunc) Dispatch(ctx context.Context, sessionID string, action domain.Action) error {
	return f(ctx, sessionID, action)
}

// MultiDispatcher hands every action to each dispatcher in order.
// Dispatchers ignore the kinds they do not handle. All are tried; the errors are joined.
type MultiDispatcher []ActionDispatcher

func (m MultiDispatcher) Dispatch(ctx context.Context, sessionID string, action domain.Action) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, sessionID, action); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
