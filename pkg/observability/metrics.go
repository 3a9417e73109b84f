package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// Metrics holds the Prometheus collectors fed by engine lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	StepVisits    *prometheus.CounterVec
	Actions       *prometheus.CounterVec
	SessionEvents *prometheus.CounterVec
}

// NewMetrics creates collectors registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whatsflow_step_visits_total",
				Help: "Total number of executed steps",
			},
			[]string{"flow_id", "kind"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whatsflow_actions_total",
				Help: "Total number of emitted actions",
			},
			[]string{"flow_id", "kind"},
		),
		SessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whatsflow_session_events_total",
				Help: "Session lifecycle events (suspend, complete, dead_end, persist_error)",
			},
			[]string{"flow_id", "type"},
		),
	}
	m.registry.MustRegister(
		m.StepVisits,
		m.Actions,
		m.SessionEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.FlowID, string(e.StepKind)).Inc()
		},
		OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
			for _, a := range e.Actions {
				m.Actions.WithLabelValues(e.FlowID, string(a.Kind)).Inc()
			}
		},
		OnSessionEvent: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionEvents.WithLabelValues(e.FlowID, string(e.Type)).Inc()
		},
	}
}
