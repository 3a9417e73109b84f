package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// FlowStore implements ports.FlowStore using an in-memory map.
type FlowStore struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewFlowStore creates a FlowStore seeded with flows.
func NewFlowStore(flows ...*domain.Flow) (*FlowStore, error) {
	s := &FlowStore{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		if err := s.Put(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds or replaces a flow.
func (s *FlowStore) Put(f *domain.Flow) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("flow missing ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = f
	return nil
}

// GetFlow resolves a flow by id, then by key.
func (s *FlowStore) GetFlow(ctx context.Context, ref string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.flows[ref]; ok {
		return f, nil
	}
	for _, f := range s.flows {
		if f.Key != "" && f.Key == ref {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, ref)
}

// ListFlows returns all flow IDs.
func (s *FlowStore) ListFlows(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.flows))
	for id := range s.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}
