package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/persistence/middleware"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, encrypted(t, memory.NewSessionStore(), middleware.EncryptionConfig{
		ActiveKey: generateKey(t),
	}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	s := domain.NewSession("s1", "flow", "ask", domain.NewBindings(map[string]any{
		domain.KeyPhone: "+34600111222",
	}))
	require.NoError(t, store.Save(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	_, leaked := raw.Bindings.Get(domain.KeyPhone)
	assert.False(t, leaked, "bindings must not be stored in the clear")
	assert.NotEmpty(t, raw.Bindings.String(middleware.EncryptedKey))
	assert.Equal(t, "ask", raw.CurrentStepID)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "+34600111222", loaded.Bindings.String(domain.KeyPhone))
	assert.Equal(t, int64(1), loaded.Version)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	s := domain.NewSession("s1", "flow", "ask", domain.NewBindings(map[string]any{"data": "old"}))
	require.NoError(t, oldStore.Save(ctx, s))

	newStore := encrypted(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := newStore.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "old", loaded.Bindings.String("data"))

	loaded.Bindings = loaded.Bindings.With("data", "new")
	require.NoError(t, newStore.Save(ctx, loaded))

	_, err = oldStore.Load(ctx, "s1")
	assert.Error(t, err, "old key alone cannot read data written with the new key")
}

func TestEncryptionMiddleware_StaleVersion(t *testing.T) {
	ctx := context.Background()
	store := encrypted(t, memory.NewSessionStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	s := domain.NewSession("s1", "flow", "ask", domain.NewBindings(nil))
	require.NoError(t, store.Save(ctx, s))
	stale := s.Clone()
	require.NoError(t, store.Save(ctx, s))

	assert.ErrorIs(t, store.Save(ctx, stale), domain.ErrConflict)
}

func TestEncryptionMiddleware_PlainSession(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	require.NoError(t, underlying.Save(ctx, domain.NewSession("s1", "flow", "ask", domain.NewBindings(nil))))

	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := store.Load(ctx, "s1")
	assert.ErrorContains(t, err, "missing its encrypted envelope")
}

func TestNewEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrKeySize)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrKeySize)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey("c2hvcnQ=")
	assert.ErrorIs(t, err, middleware.ErrKeySize)
	_, err = middleware.ParseKey("%%%")
	assert.Error(t, err)
}
