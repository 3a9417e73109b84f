// Package cache decorates a flow store with an in-process TTL cache.
package cache

import (
	"context"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// DefaultTTL is how long a resolved flow is served from memory.
const DefaultTTL = time.Minute

// FlowStore caches flows resolved by an underlying ports.FlowStore.
// Entries are keyed by the reference the caller used (id or key).
// Lookup failures are not cached.
type FlowStore struct {
	next  ports.FlowStore
	cache *c.Cache
}

// NewFlowStore wraps next. A ttl <= 0 uses DefaultTTL.
func NewFlowStore(next ports.FlowStore, ttl time.Duration) *FlowStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FlowStore{
		next:  next,
		cache: c.New(ttl, 2*ttl),
	}
}

// GetFlow returns the cached flow for ref or loads it from the wrapped store.
func (s *FlowStore) GetFlow(ctx context.Context, ref string) (*domain.Flow, error) {
	if v, found := s.cache.Get(ref); found {
		return v.(*domain.Flow), nil
	}
	flow, err := s.next.GetFlow(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(ref, flow)
	return flow, nil
}

// ListFlows delegates to the wrapped store when it can list.
func (s *FlowStore) ListFlows(ctx context.Context) ([]string, error) {
	if l, ok := s.next.(ports.FlowLister); ok {
		return l.ListFlows(ctx)
	}
	return []string{}, nil
}

// Invalidate drops every cached entry of ref.
func (s *FlowStore) Invalidate(ref string) {
	s.cache.Delete(ref)
}

// Flush drops all cached flows.
func (s *FlowStore) Flush() {
	s.cache.Flush()
}
