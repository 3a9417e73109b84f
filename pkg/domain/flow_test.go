package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(id string, kind domain.StepKind) domain.Step {
	return domain.Step{ID: id, Kind: kind}
}

func TestFlow_StartStep(t *testing.T) {
	f := &domain.Flow{ID: "f", Steps: []domain.Step{step("m", domain.KindSendMessage), step("s", domain.KindStart)}}
	got, err := f.StartStep()
	require.NoError(t, err)
	assert.Equal(t, "s", got.ID)

	f.StartStepID = "m"
	_, err = f.StartStep()
	assert.ErrorIs(t, err, domain.ErrNoStartStep, "declared start must be the start step")

	_, err = (&domain.Flow{ID: "none"}).StartStep()
	assert.ErrorIs(t, err, domain.ErrNoStartStep)

	two := &domain.Flow{ID: "two", Steps: []domain.Step{step("a", domain.KindStart), step("b", domain.KindStart)}}
	_, err = two.StartStep()
	assert.ErrorIs(t, err, domain.ErrMultipleStartSteps)
}

func TestFlow_Outgoing(t *testing.T) {
	f := &domain.Flow{Connections: []domain.Connection{
		{From: "a", To: "b", Label: "TRUE"},
		{From: "x", To: "y"},
		{From: "a", To: "c"},
	}}
	out := f.Outgoing("a")
	require.Len(t, out, 2)
	assert.True(t, out[0].MatchesLabel(true))
	assert.False(t, out[0].Unconditional())
	assert.True(t, out[1].Unconditional())
	assert.Empty(t, f.Outgoing("b"))
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &domain.StepNotFoundError{FlowID: "f", StepID: "ghost", From: "a"}
	assert.True(t, errors.Is(err, domain.ErrStepNotFound))
	assert.Contains(t, err.Error(), "ghost")

	err = &domain.NotResumableError{SessionID: "s1", Status: domain.StatusCompleted, Reason: "session has ended"}
	assert.True(t, errors.Is(err, domain.ErrNotResumable))
	assert.Contains(t, err.Error(), "s1")
}

func TestSession_Clone(t *testing.T) {
	s := domain.NewSession("s1", "f", "start", domain.NewBindings(map[string]any{"k": "v"}))
	c := s.Clone()
	c.Bindings = c.Bindings.With("k", "w")
	c.CurrentStepID = "other"

	assert.Equal(t, "v", s.Bindings.String("k"))
	assert.Equal(t, "start", s.CurrentStepID)
	assert.True(t, s.Status == domain.StatusActive && !s.Status.Terminal())
	assert.True(t, domain.StatusCancelled.Terminal())
}

func TestStep_MarshalJSON(t *testing.T) {
	steps := []domain.Step{
		{ID: "start", Kind: domain.KindStart, Config: domain.StartConfig{}},
		{ID: "hello", Kind: domain.KindSendMessage, Config: domain.SendMessageConfig{Message: "Hola"}},
		{ID: "future", Kind: "carousel", Config: domain.UnhandledConfig{Kind: "carousel", Raw: map[string]any{"cards": 3}}},
	}
	data, err := json.Marshal(steps)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id": "start", "type": "start"},
		{"id": "hello", "type": "send_message", "config": {"message": "Hola"}},
		{"id": "future", "type": "carousel", "config": {"cards": 3}}
	]`, string(data))
}
