package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// ActionInterceptor decides whether an action is handed to the dispatcher.
// It returns false to skip the action.
type ActionInterceptor func(ctx context.Context, action domain.Action) (bool, error)

// MultiInterceptor chains multiple interceptors. The first denial wins.
func MultiInterceptor(interceptors ...ActionInterceptor) ActionInterceptor {
	return func(ctx context.Context, action domain.Action) (bool, error) {
		for _, interceptor := range interceptors {
			allowed, err := interceptor(ctx, action)
			if err != nil {
				return false, err
			}
			if !allowed {
				return false, nil
			}
		}
		return true, nil
	}
}

// ConfirmationMiddleware asks the user through handler before every dispatch.
func ConfirmationMiddleware(handler IOHandler) ActionInterceptor {
	return func(ctx context.Context, action domain.Action) (bool, error) {
		msg := fmt.Sprintf("Dispatch %s %+v? [y/N]", action.Kind, action.Payload)
		if err := handler.SystemOutput(ctx, msg); err != nil {
			return false, err
		}
		input, err := handler.Input(ctx)
		if err != nil {
			return false, err
		}
		input = strings.TrimSpace(strings.ToLower(input))
		return input == "y" || input == "yes", nil
	}
}

// KindFilter allows only the listed action kinds.
func KindFilter(kinds ...domain.ActionKind) ActionInterceptor {
	allowed := make(map[domain.ActionKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(ctx context.Context, action domain.Action) (bool, error) {
		return allowed[action.Kind], nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() ActionInterceptor {
	return func(ctx context.Context, action domain.Action) (bool, error) {
		return true, nil
	}
}
