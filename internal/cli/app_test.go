package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/config"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/cache"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/sqlite"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

const surveyYAML = `
id: survey
key: encuesta
steps:
  - id: start
    type: start
  - id: ask
    type: question_simple
    config:
      question: "¿Edad?"
      variable: edad
  - id: pause
    type: wait
    config:
      duration: 1
      unit: seconds
  - id: bye
    type: send_message
    config:
      message: "Gracias, {{edad}}"
connections:
  - {from: start, to: ask}
  - {from: ask, to: pause}
  - {from: pause, to: bye}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	cfg.Flows.Dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Flows.Dir, "survey.yaml"), []byte(surveyYAML), 0o644))
	cfg.Store.Driver = config.DriverMemory
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := Build(ctx, cfg, BuildOptions{})
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &cache.FlowStore{}, app.Flows)
	assert.Nil(t, app.Scheduler)
	assert.Nil(t, app.WhatsApp)
	assert.Equal(t, 4096, app.Sanitizer.MaxLength)

	res, err := app.Engine.Start(ctx, "encuesta", "s1", nil)
	require.NoError(t, err)
	assert.True(t, res.Session.SuspendedOnQuestion())

	res, err = app.Engine.Resume(ctx, "s1", "ask", "30", "")
	require.NoError(t, err)
	assert.True(t, res.Session.SuspendedOnWait())
	assert.Equal(t, "bye", res.NextStepID)
}

func TestBuild_FileStoreWithoutCache(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Flows.CacheTTL = 0
	cfg.Store.Driver = config.DriverFile
	cfg.Store.Path = filepath.Join(t.TempDir(), "sessions")

	app, err := Build(ctx, cfg, BuildOptions{})
	require.NoError(t, err)
	defer app.Close()

	_, cached := app.Flows.(*cache.FlowStore)
	assert.False(t, cached)
	_, err = app.Engine.Start(ctx, "survey", "s1", nil)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(cfg.Store.Path, "s1.json"))
	assert.NoError(t, err)
}

func TestBuild_RedisAndSQLite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "answers.db")

	app, err := Build(ctx, cfg, BuildOptions{})
	require.NoError(t, err)

	_, err = app.Engine.Start(ctx, "survey", "s1", map[string]any{"phone": "+34600"})
	require.NoError(t, err)
	_, err = app.Engine.Resume(ctx, "s1", "ask", "41", "")
	require.NoError(t, err)

	ids, err := app.Sessions.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
	require.NoError(t, app.Close())

	db, err := sqlite.Open(cfg.SQLite.Path)
	require.NoError(t, err)
	defer db.Close()
	answers, err := db.Answers(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "41", answers[0].Answer)
}

func TestBuild_EncryptedSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverFile
	cfg.Store.Path = filepath.Join(t.TempDir(), "sessions")
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	app, err := Build(ctx, cfg, BuildOptions{})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Engine.Start(ctx, "survey", "s1", map[string]any{"phone": "+34600111222"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Path, "s1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "+34600111222")

	s, err := app.Engine.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "+34600111222", s.Bindings.String("phone"))

	cfg.Store.EncryptionKey = "c2hvcnQ="
	_, err = Build(ctx, cfg, BuildOptions{})
	assert.ErrorContains(t, err, "store encryption key")
}

func TestBuild_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Redis.Addr = addr

	_, err := Build(context.Background(), cfg, BuildOptions{})
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestBuild_ScheduleWakesWaits(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), BuildOptions{Schedule: true})
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Scheduler)

	_, err = app.Engine.Start(ctx, "survey", "s1", nil)
	require.NoError(t, err)
	_, err = app.Engine.Resume(ctx, "s1", "ask", "30", "")
	require.NoError(t, err)
	assert.Equal(t, 1, app.Scheduler.Pending())

	assert.Eventually(t, func() bool {
		s, err := app.Engine.Session(ctx, "s1")
		return err == nil && s.Status == domain.StatusCompleted
	}, 5*time.Second, 50*time.Millisecond)
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewLogger(config.Log{Level: "debug", Format: "json"}, buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.Log{Level: "loud"}, buf)
	assert.Error(t, err)
}
