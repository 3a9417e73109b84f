package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// TextHandler renders the conversation as a chat transcript.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	// Sanitizer cleans every line read. Rejected lines are asked again.
	Sanitizer Sanitizer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerSanitizer configures how input lines are cleaned.
func WithTextHandlerSanitizer(s Sanitizer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Sanitizer = s
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor context cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Output prints the messages of the flow. Actions that are not messages are
// printed as system notes.
func (h *TextHandler) Output(ctx context.Context, actions []domain.Action) error {
	for _, act := range actions {
		switch p := act.Payload.(type) {
		case domain.SendWhatsApp:
			h.printMessage(p.Text)
		case domain.SendWhatsAppTemplate:
			h.note("template %q (%s)%s", p.Template, p.Language, formatVars(p.Variables))
		case domain.SendEmail:
			h.note("email to %s: %s", p.To, p.Subject)
		case domain.Wait:
			h.note("waiting %d %s", p.Duration, p.Unit)
		case domain.AssignToAdmin:
			h.note("assigned to admin %s", p.Admin)
		case domain.AssignConversation:
			h.note("conversation assigned to %s %s", p.AssigneeType, p.AssigneeID)
		default:
			h.note("%s", act.Kind)
		}
	}
	return nil
}

func (h *TextHandler) printMessage(msg string) {
	output := msg
	if h.Renderer != nil {
		if rendered, err := h.Renderer(msg); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(output))
}

func (h *TextHandler) note(format string, args ...any) {
	fmt.Fprintf(h.Writer, "[%s]\n", fmt.Sprintf(format, args...))
}

func formatVars(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + vars[k]
	}
	return " " + strings.Join(parts, " ")
}

// Input prompts and reads one line. Lines rejected by SanitizeInput are
// reported and read again.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := h.Sanitizer.Clean(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return nil
}
