package ports

import (
	"context"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// FlowStore defines how the engine retrieves flow definitions.
// This allows the storage layer (files, memory, a CRM database) to be decoupled.
type FlowStore interface {
	// GetFlow resolves a flow by its id or, failing that, its unique key.
	// Returns domain.ErrFlowNotFound when neither matches.
	GetFlow(ctx context.Context, ref string) (*domain.Flow, error)
}

// FlowLister is implemented by flow stores that can enumerate their flows.
// It is used by introspection tools (e.g. 'whatsflow validate').
type FlowLister interface {
	ListFlows(ctx context.Context) ([]string, error)
}
