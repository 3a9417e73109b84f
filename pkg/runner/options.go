package runner

import (
	"io"
	"log/slog"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithIO sets the reader and writer of the default text handler.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.Input = in
		r.Output = out
	}
}

// WithHeadless sets the runner to headless mode.
func WithHeadless(headless bool) Option {
	return func(r *Runner) {
		r.Headless = headless
	}
}

// WithSessionID sets the session id. Empty means a generated one.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithResume continues the session when it exists and has not ended.
func WithResume(resume bool) Option {
	return func(r *Runner) {
		r.Resume = resume
	}
}

// WithBindings sets the initial variables of a new session.
func WithBindings(b map[string]any) Option {
	return func(r *Runner) {
		r.Bindings = b
	}
}

// WithWaitMode selects how wait steps are simulated.
func WithWaitMode(m WaitMode) Option {
	return func(r *Runner) {
		r.Waits = m
	}
}

// WithRenderer configures the content renderer (e.g. TUI, Markdown).
func WithRenderer(renderer ContentRenderer) Option {
	return func(r *Runner) {
		r.Renderer = renderer
	}
}

// WithSanitizer bounds and cleans the answers read by the default text handler.
func WithSanitizer(s Sanitizer) Option {
	return func(r *Runner) {
		r.Sanitizer = s
	}
}

// WithDispatcher also performs the actions through d.
func WithDispatcher(d ports.ActionDispatcher) Option {
	return func(r *Runner) {
		r.Dispatcher = d
	}
}

// WithInterceptor configures the dispatch middleware.
func WithInterceptor(interceptor ActionInterceptor) Option {
	return func(r *Runner) {
		r.Interceptor = interceptor
	}
}
