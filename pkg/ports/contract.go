package ports

import (
	"context"
	"testing"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		bindings := domain.NewBindings(map[string]any{"name": "Ana", "age": 34})
		session := domain.NewSession(sessionID, "flow-1", "start", bindings)

		require.NoError(t, store.Save(ctx, session), "Save should not return error")
		assert.Equal(t, int64(1), session.Version, "Save should bump the version in place")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "flow-1", loaded.FlowID)
		assert.Equal(t, "start", loaded.CurrentStepID)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, "Ana", loaded.Bindings.String("name"))
		// Numbers survive as their textual form whatever the encoding.
		assert.Equal(t, "34", loaded.Bindings.String("age"))

		require.NoError(t, store.Delete(ctx, sessionID))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Stale Version Conflicts", func(t *testing.T) {
		id := sessionID + "-conflict"
		defer func() { _ = store.Delete(ctx, id) }()

		first := domain.NewSession(id, "flow-1", "start", domain.Bindings{})
		require.NoError(t, store.Save(ctx, first))

		a, err := store.Load(ctx, id)
		require.NoError(t, err)
		b, err := store.Load(ctx, id)
		require.NoError(t, err)

		a.CurrentStepID = "a"
		require.NoError(t, store.Save(ctx, a))

		b.CurrentStepID = "b"
		err = store.Save(ctx, b)
		assert.ErrorIs(t, err, domain.ErrConflict)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a", loaded.CurrentStepID, "losing writer must not overwrite")
		assert.Equal(t, int64(2), loaded.Version)
	})

	t.Run("New Session Over Existing Conflicts", func(t *testing.T) {
		id := sessionID + "-dup"
		defer func() { _ = store.Delete(ctx, id) }()

		require.NoError(t, store.Save(ctx, domain.NewSession(id, "flow-1", "start", domain.Bindings{})))
		err := store.Save(ctx, domain.NewSession(id, "flow-1", "start", domain.Bindings{}))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, "flow-1", "start", domain.Bindings{})))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, "flow-1", "start", domain.Bindings{})))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, "flow-1", "start", domain.Bindings{})))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunFlowStoreContract verifies that a FlowStore seeded with flow resolves it by id and key.
// The flow must carry a non-empty Key distinct from its ID.
func RunFlowStoreContract(t *testing.T, store FlowStore, flow *domain.Flow) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetFlow by ID", func(t *testing.T) {
		got, err := store.GetFlow(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, flow.ID, got.ID)
		assert.Len(t, got.Steps, len(flow.Steps))
		assert.Len(t, got.Connections, len(flow.Connections))
	})

	t.Run("GetFlow by Key", func(t *testing.T) {
		got, err := store.GetFlow(ctx, flow.Key)
		require.NoError(t, err)
		assert.Equal(t, flow.ID, got.ID)
	})

	t.Run("GetFlow NotFound", func(t *testing.T) {
		_, err := store.GetFlow(ctx, "non-existent-flow")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})
}
