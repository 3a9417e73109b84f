package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// WaitMode selects how the console handles a wait step.
type WaitMode int

const (
	// WaitSkip wakes the session immediately.
	WaitSkip WaitMode = iota
	// WaitSleep sleeps for the configured interval before waking.
	WaitSleep
)

// Runner plays a flow as a chat in the console: the flow's messages are
// printed and each line typed by the user answers the pending question.
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler over Input and Output is used.
	Handler IOHandler

	// Dispatcher also performs the actions of every call (e.g. real WhatsApp sends).
	// If nil, actions are only printed.
	Dispatcher ports.ActionDispatcher

	// Interceptor filters dispatched actions.
	// If nil, defaults to AutoApprove when headless and Confirmation otherwise.
	Interceptor ActionInterceptor

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	SessionID string
	Bindings  map[string]any
	Resume    bool
	Waits     WaitMode

	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	// Sanitizer cleans the answers read by the default text handler.
	Sanitizer Sanitizer
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a new Runner with default Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Input:  os.Stdin,
		Output: os.Stdout,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts flowRef (or resumes the configured session) and drives the
// conversation until the session ends or the input is exhausted.
// It returns the last session snapshot.
func (r *Runner) Run(ctx context.Context, rt ports.Runtime, flowRef string) (*domain.Session, error) {
	handler := r.resolveHandler()

	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	res, err := r.begin(ctx, rt, handler, flowRef)
	if err != nil {
		return nil, err
	}

	for {
		if err := handler.Output(ctx, res.Actions); err != nil {
			return res.Session, fmt.Errorf("output error: %w", err)
		}
		if err := r.dispatch(ctx, res); err != nil {
			return res.Session, err
		}

		sess := res.Session
		switch {
		case sess.Status.Terminal():
			_ = handler.SystemOutput(ctx, fmt.Sprintf("conversation %s", sess.Status))
			return sess, nil

		case sess.SuspendedOnWait():
			if err := r.wait(ctx, handler, res.Actions); err != nil {
				return sess, err
			}
			res, err = rt.Wake(ctx, sess.ID)

		case sess.SuspendedOnQuestion():
			var input string
			input, err = handler.Input(ctx)
			if errors.Is(err, io.EOF) {
				_ = handler.SystemOutput(ctx, fmt.Sprintf("session %s paused at %s", sess.ID, sess.CurrentStepID))
				return sess, nil
			}
			if err != nil {
				signals.CheckRace()
				if ctx.Err() != nil {
					return sess, ctx.Err()
				}
				return sess, fmt.Errorf("input error: %w", err)
			}
			res, err = rt.Resume(ctx, sess.ID, sess.CurrentStepID, input, "")

		default:
			// Active without a suspension only happens when the step budget ran out.
			return sess, nil
		}
		if err != nil {
			return sess, err
		}
		r.Logger.Debug("turn finished", "session_id", res.Session.ID, "step_id", res.Session.CurrentStepID)
	}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler != nil {
		return r.Handler
	}
	th := NewTextHandler(r.Input, r.Output, WithTextHandlerRenderer(r.Renderer), WithTextHandlerSanitizer(r.Sanitizer))
	if !r.Headless && r.Output != nil {
		fmt.Fprintln(r.Output, "--- whatsflow console ---")
	}
	r.Handler = th
	return th
}

// resolveInterceptor returns the configured or default interceptor.
func (r *Runner) resolveInterceptor() ActionInterceptor {
	if r.Interceptor != nil {
		return r.Interceptor
	}
	if r.Headless {
		return AutoApproveMiddleware()
	}
	return ConfirmationMiddleware(r.resolveHandler())
}

func (r *Runner) dispatch(ctx context.Context, res *domain.RunResult) error {
	if r.Dispatcher == nil {
		return nil
	}
	allow := r.resolveInterceptor()
	for _, a := range res.Actions {
		ok, err := allow(ctx, a)
		if err != nil {
			return fmt.Errorf("interceptor error: %w", err)
		}
		if !ok {
			r.Logger.Debug("action skipped", "kind", a.Kind)
			continue
		}
		if err := r.Dispatcher.Dispatch(ctx, res.Session.ID, a); err != nil {
			r.Logger.Warn("failed to dispatch action", "kind", a.Kind, "err", err)
		}
	}
	return nil
}

func (r *Runner) wait(ctx context.Context, handler IOHandler, actions []domain.Action) error {
	var d time.Duration
	for _, a := range actions {
		if w, ok := a.Payload.(domain.Wait); ok {
			d = domain.Interval(w.Duration, w.Unit)
		}
	}
	if r.Waits == WaitSkip || d <= 0 {
		return nil
	}

	_ = handler.SystemOutput(ctx, fmt.Sprintf("sleeping %s", d))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
