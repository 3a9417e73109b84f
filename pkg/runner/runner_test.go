package runner_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/dsl"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/runner"
)

func newEngine(t *testing.T) *whatsflow.Engine {
	t.Helper()
	b := dsl.New("color")
	b.Add("start").Start().Go("hello")
	b.Add("hello").SendMessage("Hola {{name}}").Go("ask")
	b.Add("ask").Question("¿Color favorito?").SaveTo("color").Go("pause")
	b.Add("pause").Wait(1, domain.UnitHours).Go("bye")
	b.Add("bye").SendMessage("Vale, {{color}}")

	flows, err := memory.NewFlowStore(b.MustBuild())
	require.NoError(t, err)
	eng, err := whatsflow.New(whatsflow.WithFlowStore(flows))
	require.NoError(t, err)
	return eng
}

func TestRunner_Conversation(t *testing.T) {
	eng := newEngine(t)
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithIO(strings.NewReader("azul\n"), out),
		runner.WithHeadless(true),
		runner.WithSessionID("s1"),
		runner.WithBindings(map[string]any{"name": "Ana"}),
	)

	sess, err := r.Run(context.Background(), eng, "color")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
	assert.Equal(t, "azul", sess.Bindings.String("color"))

	transcript := out.String()
	assert.Equal(t, "Hola Ana\n¿Color favorito?\n> [waiting 1 hours]\nVale, azul\n\n[System] conversation completed\n", transcript)
}

func TestRunner_PauseAndResume(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	first := runner.NewRunner(
		runner.WithIO(strings.NewReader(""), &bytes.Buffer{}),
		runner.WithHeadless(true),
		runner.WithSessionID("s1"),
	)
	sess, err := first.Run(ctx, eng, "color")
	require.NoError(t, err)
	assert.True(t, sess.SuspendedOnQuestion(), "EOF leaves the session waiting")

	out := &bytes.Buffer{}
	second := runner.NewRunner(
		runner.WithIO(strings.NewReader("rojo\n"), out),
		runner.WithHeadless(true),
		runner.WithSessionID("s1"),
		runner.WithResume(true),
	)
	sess, err = second.Run(ctx, eng, "color")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
	assert.Contains(t, out.String(), "resuming session s1 at ask")
	assert.Contains(t, out.String(), "Vale, rojo")
	assert.NotContains(t, out.String(), "Hola", "resume does not restart the flow")
}

func TestRunner_ResumeUnknownSessionStarts(t *testing.T) {
	eng := newEngine(t)
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithIO(strings.NewReader("verde\n"), out),
		runner.WithHeadless(true),
		runner.WithSessionID("fresh"),
		runner.WithResume(true),
	)
	sess, err := r.Run(context.Background(), eng, "color")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
	assert.Contains(t, out.String(), "Hola")
}

func TestRunner_SanitizerBoundsAnswers(t *testing.T) {
	eng := newEngine(t)
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithIO(strings.NewReader("azul marino\nazul\n"), out),
		runner.WithHeadless(true),
		runner.WithSanitizer(runner.NewSanitizer(4)),
	)
	sess, err := r.Run(context.Background(), eng, "color")
	require.NoError(t, err)
	assert.Equal(t, "azul", sess.Bindings.String("color"))
	assert.Contains(t, out.String(), "Please try again.")
}

func TestRunner_UnknownFlow(t *testing.T) {
	eng := newEngine(t)
	r := runner.NewRunner(runner.WithIO(strings.NewReader(""), &bytes.Buffer{}), runner.WithHeadless(true))
	_, err := r.Run(context.Background(), eng, "ghost")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	kinds []domain.ActionKind
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, a domain.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kinds = append(d.kinds, a.Kind)
	return nil
}

func TestRunner_DispatchesThroughInterceptor(t *testing.T) {
	eng := newEngine(t)
	d := &recordingDispatcher{}
	r := runner.NewRunner(
		runner.WithIO(strings.NewReader("azul\n"), &bytes.Buffer{}),
		runner.WithHeadless(true),
		runner.WithDispatcher(d),
		runner.WithInterceptor(runner.KindFilter(domain.ActionSendWhatsApp)),
	)
	_, err := r.Run(context.Background(), eng, "color")
	require.NoError(t, err)
	assert.Equal(t, []domain.ActionKind{
		domain.ActionSendWhatsApp, domain.ActionSendWhatsApp, domain.ActionSendWhatsApp,
	}, d.kinds)
}

func TestRunner_JSONHandler(t *testing.T) {
	eng := newEngine(t)
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewJSONHandler(strings.NewReader("\"azul\"\n"), out)),
		runner.WithSessionID("s1"),
	)
	sess, err := r.Run(context.Background(), eng, "color")
	require.NoError(t, err)
	assert.Equal(t, "azul", sess.Bindings.String("color"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"system": "conversation completed"}`, lines[3])
}
