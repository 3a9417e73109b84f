package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// JSONHandler implements the IOHandler interface for JSON-Lines communication.
// Every engine call is emitted as one line; answers are read one per line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
	// Sanitizer cleans every answer read.
	Sanitizer Sanitizer
}

// JSONHandlerOption defines configuration for JSONHandler.
type JSONHandlerOption func(*JSONHandler)

// WithJSONHandlerSanitizer configures how answers are cleaned.
func WithJSONHandlerSanitizer(s Sanitizer) JSONHandlerOption {
	return func(h *JSONHandler) {
		h.Sanitizer = s
	}
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer, opts ...JSONHandlerOption) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type jsonEnvelope struct {
	Actions []domain.Action `json:"actions,omitempty"`
	System  string          `json:"system,omitempty"`
}

func (h *JSONHandler) Output(ctx context.Context, actions []domain.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return h.Encoder.Encode(jsonEnvelope{Actions: actions})
}

// Input reads a line holding either a JSON string or plain text.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		text = val
	}
	return h.Sanitizer.Clean(text)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(jsonEnvelope{System: msg})
}
