package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/sqlite"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.AnswerLog        = (*sqlite.Store)(nil)
	_ ports.CustomFieldStore = (*sqlite.Store)(nil)
)

func openStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whatsflow.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStore_Answers(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendAnswer(ctx, domain.Answer{
		FlowID: "f", SessionID: "s1", StepID: "age", Question: "¿Edad?", Answer: "34", AnsweredAt: at,
	}))
	require.NoError(t, store.AppendAnswer(ctx, domain.Answer{
		FlowID: "f", SessionID: "s1", StepID: "menu", Question: "¿Qué?", Answer: "Té", OptionID: "opt2", AnsweredAt: at,
	}))
	require.NoError(t, store.AppendAnswer(ctx, domain.Answer{FlowID: "f", SessionID: "s2", StepID: "age", Answer: "9"}))

	got, err := store.Answers(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "34", got[0].Answer)
	assert.True(t, at.Equal(got[0].AnsweredAt))
	assert.Equal(t, "opt2", got[1].OptionID)

	none, err := store.Answers(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_CustomFieldsUpsert(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()

	_, ok, err := store.CustomFieldValue(ctx, "+34600", "cf-email")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertCustomFieldValue(ctx, "+34600", "cf-email", "old@example.com"))
	require.NoError(t, store.UpsertCustomFieldValue(ctx, "+34600", "cf-email", "ana@example.com"))

	v, ok, err := store.CustomFieldValue(ctx, "+34600", "cf-email")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ana@example.com", v)

	// Reopening keeps data and reapplies the schema without error.
	require.NoError(t, store.Close())
	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err = reopened.CustomFieldValue(ctx, "+34600", "cf-email")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ana@example.com", v)
}
