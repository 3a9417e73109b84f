package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
	flowhttp "github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/http"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/dsl"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/runner"
)

type result struct {
	Actions []struct {
		Kind    string         `json:"kind"`
		Payload map[string]any `json:"payload"`
	} `json:"actions"`
	Session struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		Suspension    string `json:"suspension"`
		CurrentStepID string `json:"current_step_id"`
	} `json:"session"`
}

func colorFlow() *domain.Flow {
	b := dsl.New("color").Key("colores")
	b.Add("start").Start().Go("hello")
	b.Add("hello").SendMessage("Hola {{name}}").Go("ask")
	b.Add("ask").Question("¿Color favorito?").SaveTo("color").Go("bye")
	b.Add("bye").SendMessage("Vale, {{color}}")
	return b.MustBuild()
}

func newServer(t *testing.T, opts ...flowhttp.Option) *httptest.Server {
	t.Helper()
	flows, err := memory.NewFlowStore(colorFlow())
	require.NoError(t, err)
	eng, err := whatsflow.New(whatsflow.WithFlowStore(flows))
	require.NoError(t, err)

	srv := httptest.NewServer(flowhttp.NewHandler(eng, flows, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_ConversationRoundTrip(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/flows/colores/sessions", map[string]any{
		"session_id": "s1",
		"bindings":   map[string]any{"name": "Ana", "phone": "+34600"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	started := decode[result](t, resp)
	require.Len(t, started.Actions, 2)
	assert.Equal(t, "Hola Ana", started.Actions[0].Payload["text"])
	assert.Equal(t, "¿Color favorito?", started.Actions[1].Payload["text"])
	assert.Equal(t, "question", started.Session.Suspension)
	assert.Equal(t, "ask", started.Session.CurrentStepID)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/answers", map[string]any{
		"step_id": "ask",
		"answer":  "azul\x1b[31m",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answered := decode[result](t, resp)
	require.Len(t, answered.Actions, 1)
	assert.Equal(t, "Vale, azul[31m", answered.Actions[0].Payload["text"], "control characters are stripped")
	assert.Equal(t, "completed", answered.Session.Status)

	resp = do(t, http.MethodGet, srv.URL+"/sessions/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decode[map[string]any](t, resp)
	assert.Equal(t, "completed", sess["status"])
	assert.Equal(t, "azul[31m", sess["bindings"].(map[string]any)["color"])
}

func TestServer_GeneratesSessionID(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/flows/color/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[result](t, resp)
	assert.NotEmpty(t, res.Session.ID)
}

func TestServer_StartAtStep(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{
		"session_id": "s1",
		"step_id":    "bye",
		"bindings":   map[string]any{"color": "verde"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[result](t, resp)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "Vale, verde", res.Actions[0].Payload["text"])
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{"session_id": "s1"}).StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown flow", http.MethodPost, "/flows/ghost/sessions", nil, http.StatusNotFound},
		{"unknown session", http.MethodGet, "/sessions/ghost", nil, http.StatusNotFound},
		{"answer to a ghost session", http.MethodPost, "/sessions/ghost/answers", map[string]any{"step_id": "ask", "answer": "x"}, http.StatusUnprocessableEntity},
		{"answer to the wrong step", http.MethodPost, "/sessions/s1/answers", map[string]any{"step_id": "hello", "answer": "x"}, http.StatusUnprocessableEntity},
		{"wake a question", http.MethodPost, "/sessions/s1/wake", nil, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/flows/color/sessions", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_RejectsOversizedAnswer(t *testing.T) {
	srv := newServer(t, flowhttp.WithSanitizer(runner.NewSanitizer(8)))
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{"session_id": "s1"}).StatusCode)

	resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/answers", map[string]any{
		"step_id": "ask",
		"answer":  strings.Repeat("a", 9),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Eight characters pass although they take sixteen bytes.
	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/answers", map[string]any{
		"step_id": "ask",
		"answer":  strings.Repeat("ñ", 8),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", decode[result](t, resp).Session.Status)
}

func TestServer_Cancel(t *testing.T) {
	srv := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{"session_id": "s1"}).StatusCode)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/sessions/s1", nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/sessions/s1", nil).StatusCode, "cancel is idempotent")

	resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/answers", map[string]any{"step_id": "ask", "answer": "rojo"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_Flows(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/flows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"color"}, decode[[]string](t, resp))

	resp = do(t, http.MethodGet, srv.URL+"/flows/colores", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flow := decode[map[string]any](t, resp)
	assert.Equal(t, "color", flow["id"])
	assert.Len(t, flow["steps"], 4)
	assert.NotContains(t, flow, "unreachable")
}

func TestServer_Graph(t *testing.T) {
	srv := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{"session_id": "s1"}).StatusCode)

	resp := do(t, http.MethodGet, srv.URL+"/flows/color/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "graph TD\n"))
	assert.NotContains(t, string(body), "classDef")

	resp = do(t, http.MethodGet, srv.URL+"/flows/color/graph?session_id=s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "class ask current;")
}

func TestServer_HealthInfoAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "whatsflow_up 1")
	})
	srv := newServer(t, flowhttp.WithMetrics(metrics))

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	resp = do(t, http.MethodGet, srv.URL+"/info", nil)
	info := decode[map[string]string](t, resp)
	assert.Equal(t, "whatsflow-http", info["app"])
	assert.Equal(t, whatsflow.Version, info["version"])

	resp = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "whatsflow_up 1", string(body))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/flows", nil)
	require.NoError(t, err)
	opts, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer opts.Body.Close()
	assert.Equal(t, http.StatusOK, opts.StatusCode)
	assert.Equal(t, "*", opts.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events?watch=actions", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// Subscribed before the ping is written.
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/flows/color/sessions", map[string]any{
		"session_id": "s1",
		"bindings":   map[string]any{"name": "Luis"},
	}).StatusCode)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var res result
	require.NoError(t, json.Unmarshal([]byte(data), &res))
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, "Hola Luis", res.Actions[0].Payload["text"])
}

func TestStreamManager(t *testing.T) {
	sm := flowhttp.NewStreamManager()
	ch, unsubscribe := sm.Subscribe("s1")
	assert.Equal(t, 1, sm.Subscribers("s1"))

	sm.Broadcast("s1", "one")
	sm.Broadcast("s2", "ignored")
	assert.Equal(t, "one", <-ch)

	for i := 0; i < 20; i++ {
		sm.Broadcast("s1", "flood")
	}
	assert.Len(t, ch, 10, "slow subscribers drop instead of blocking")

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, sm.Subscribers("s1"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("load: %w", domain.ErrFlowNotFound), http.StatusNotFound},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("save: %w", domain.ErrConflict), http.StatusConflict},
		{&domain.NotResumableError{SessionID: "s1"}, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{domain.ErrStepLimitExceeded, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, flowhttp.StatusFor(tt.err), tt.err.Error())
	}
}
