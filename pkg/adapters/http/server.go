// Package http exposes the flow runtime over a JSON HTTP API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/presentation/graph"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/validator"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/runner"
)

// Server holds the HTTP handlers.
type Server struct {
	Runtime ports.Runtime
	Flows   ports.FlowStore
	Streams *StreamManager

	metrics   http.Handler
	webhook   *Webhook
	sanitizer runner.Sanitizer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithSanitizer bounds and cleans answers and inbound messages.
func WithSanitizer(san runner.Sanitizer) Option {
	return func(s *Server) { s.sanitizer = san }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHandler creates the HTTP handler for rt. flows serves the read-only
// flow endpoints.
func NewHandler(rt ports.Runtime, flows ports.FlowStore, opts ...Option) http.Handler {
	s := &Server{
		Runtime: rt,
		Flows:   flows,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.ListFlows)
		r.Get("/{ref}", s.GetFlow)
		r.Get("/{ref}/graph", s.GetGraph)
		r.Post("/{ref}/sessions", s.StartSession)
	})
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Delete("/", s.CancelSession)
		r.Post("/answers", s.Answer)
		r.Post("/wake", s.Wake)
		r.Get("/events", s.SubscribeEvents)
	})
	if s.webhook != nil {
		r.Get("/webhooks/whatsapp", s.VerifyWebhook)
		r.Post("/webhooks/whatsapp", s.ReceiveWebhook)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// StartRequest is the body of POST /flows/{ref}/sessions.
type StartRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	Bindings  map[string]any `json:"bindings,omitempty"`
}

// AnswerRequest is the body of POST /sessions/{id}/answers.
type AnswerRequest struct {
	StepID   string `json:"step_id"`
	Answer   string `json:"answer"`
	OptionID string `json:"option_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type stepStarter interface {
	StartAt(ctx context.Context, flowRef, sessionID, stepID string, bindings map[string]any) (*domain.RunResult, error)
}

// StartSession handles POST /flows/{ref}/sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	ref := chi.URLParam(r, "ref")

	var res *domain.RunResult
	var err error
	if body.StepID != "" {
		starter, ok := s.Runtime.(stepStarter)
		if !ok {
			s.writeError(w, r, http.StatusNotImplemented, fmt.Errorf("starting at a step is not supported"))
			return
		}
		res, err = starter.StartAt(r.Context(), ref, body.SessionID, body.StepID, body.Bindings)
	} else {
		res, err = s.Runtime.Start(r.Context(), ref, body.SessionID, body.Bindings)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publish(res)
	writeJSON(w, http.StatusCreated, res)
}

// Answer handles POST /sessions/{id}/answers.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	answer, err := s.sanitizer.Clean(body.Answer)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := s.Runtime.Resume(r.Context(), chi.URLParam(r, "id"), body.StepID, answer, body.OptionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publish(res)
	writeJSON(w, http.StatusOK, res)
}

// Wake handles POST /sessions/{id}/wake.
func (s *Server) Wake(w http.ResponseWriter, r *http.Request) {
	res, err := s.Runtime.Wake(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publish(res)
	writeJSON(w, http.StatusOK, res)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Runtime.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CancelSession handles DELETE /sessions/{id}.
func (s *Server) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Runtime.Cancel(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if sess, err := s.Runtime.Session(r.Context(), id); err == nil {
		s.publish(&domain.RunResult{Session: sess, Actions: []domain.Action{}})
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.Flows.(ports.FlowLister)
	if !ok {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := lister.ListFlows(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetFlow handles GET /flows/{ref}. The response carries the ids of steps
// unreachable from the start step.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.Flows.GetFlow(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*domain.Flow
		Unreachable []string `json:"unreachable,omitempty"`
	}{flow, validator.Unreachable(flow)})
}

// GetGraph handles GET /flows/{ref}/graph, a Mermaid flowchart.
// With ?session_id= the session cursor is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	flow, err := s.Flows.GetFlow(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		sess, err := s.Runtime.Session(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		overlay = graph.OverlayFor(sess)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(flow, overlay)))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "whatsflow-http",
		"version": strings.TrimSpace(whatsflow.Version),
	})
}

// publish broadcasts the session snapshot of res to SSE subscribers.
func (s *Server) publish(res *domain.RunResult) {
	if res == nil || res.Session == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("failed to encode session event", "session_id", res.Session.ID, "err", err)
		return
	}
	s.Streams.Broadcast(res.Session.ID, string(data))
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	var defErr *validator.AggregateError
	switch {
	case errors.Is(err, domain.ErrFlowNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotResumable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &defErr),
		errors.Is(err, domain.ErrStepNotFound),
		errors.Is(err, domain.ErrNoStartStep),
		errors.Is(err, domain.ErrMultipleStartSteps),
		errors.Is(err, domain.ErrUnknownOperator),
		errors.Is(err, domain.ErrStepLimitExceeded):
		// The stored flow is broken; the request itself was fine.
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, StatusFor(err), err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
