package graph_test

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/presentation/graph"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/dsl"
)

func onboarding() *domain.Flow {
	b := dsl.New("onboarding")
	b.Add("start").Start().Go("hello")
	b.Add("hello").SendMessage("Hola {{name}}").Go("menu")
	b.Add("menu").Choice("¿Qué prefieres?", dsl.Option("opt1", "Café"), dsl.Option("opt2", "Té")).
		When("opt1", "adult").
		When("opt2", "pause")
	b.Add("adult").Condition("edad", domain.OpGreaterThan, "17").WhenTrue("promo").WhenFalse("handoff")
	b.Add("pause").Wait(2, domain.UnitHours).Go("handoff")
	b.Add("promo").Template("promo_v2", "es", nil)
	b.Add("handoff").Assign("admin-7", "")
	return b.MustBuild()
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGenerateMermaid_Golden(t *testing.T) {
	newGoldie(t).Assert(t, "onboarding", []byte(graph.GenerateMermaid(onboarding(), nil)))
}

func TestGenerateMermaid_OverlayGolden(t *testing.T) {
	overlay := &graph.GraphOverlay{
		VisitedSteps: []string{"start", "hello", "start"},
		CurrentStep:  "menu",
	}
	newGoldie(t).Assert(t, "onboarding_overlay", []byte(graph.GenerateMermaid(onboarding(), overlay)))
}

func TestGenerateMermaid_Sanitization(t *testing.T) {
	flow := &domain.Flow{
		Steps: []domain.Step{
			{ID: "path/to.step", Kind: domain.KindSendMessage, Config: domain.SendMessageConfig{}},
			{ID: "hyphen-ated", Kind: "carousel", Config: domain.UnhandledConfig{Kind: "carousel"}},
		},
		Connections: []domain.Connection{{From: "path/to.step", To: "hyphen-ated", Label: `say "yes"`}},
	}
	got := graph.GenerateMermaid(flow, nil)

	for _, want := range []string{
		`path_to_step["path/to.step"]`,
		`hyphen_ated["hyphen-ated"]`,
		`path_to_step -- "say 'yes'" --> hyphen_ated`,
	} {
		assert.True(t, strings.Contains(got, want), "missing %q in\n%s", want, got)
	}
}

func TestOverlayFor(t *testing.T) {
	assert.Nil(t, graph.OverlayFor(nil))
	s := domain.NewSession("s1", "f", "menu", domain.Bindings{})
	assert.Equal(t, "menu", graph.OverlayFor(s).CurrentStep)
}
