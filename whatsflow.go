package whatsflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/runtime"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/session"
)

// Result is what one engine call hands back: the actions to perform, the
// session snapshot and the step a wait continues at.
type Result = domain.RunResult

// Checkpoint selects when the cursor of a non-suspending step is persisted.
type Checkpoint = runtime.Checkpoint

const (
	// CheckpointBefore persists before each step (at-least-once side-effects).
	CheckpointBefore = runtime.CheckpointBefore
	// CheckpointAfter persists after each step (at-most-once side-effects).
	CheckpointAfter = runtime.CheckpointAfter
)

// ConditionFallback selects what a condition does when no labeled edge matches.
type ConditionFallback = runtime.ConditionFallback

const (
	// FallbackUnconditional follows the first unlabeled edge.
	FallbackUnconditional = runtime.FallbackUnconditional
	// FallbackNone ends the run as a dead end.
	FallbackNone = runtime.FallbackNone
)

// Engine is the high-level entry point of the library.
// It resolves flows, serializes calls per session and binds a runtime
// engine to the session's flow for each call. Safe for concurrent use.
type Engine struct {
	flows      ports.FlowStore
	store      ports.SessionStore
	locker     ports.DistributedLocker
	sessions   *session.Manager
	answers    ports.AnswerLog
	fields     ports.CustomFieldStore
	dispatcher ports.ActionDispatcher
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	retries    int
	lockTTL    time.Duration

	runtimeOpts []runtime.EngineOption
}

var _ ports.Runtime = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithFlowStore sets where flows are resolved by id or key. Required.
func WithFlowStore(s ports.FlowStore) Option {
	return func(e *Engine) { e.flows = s }
}

// WithSessionStore sets the session store. Defaults to an in-memory store.
func WithSessionStore(s ports.SessionStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithLocker adds a distributed lock around every session call.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLockTTL bounds how long the distributed lock of a session is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.lockTTL = ttl }
}

// WithAnswerLog records every question answer.
func WithAnswerLog(l ports.AnswerLog) Option {
	return func(e *Engine) { e.answers = l }
}

// WithCustomFieldStore mirrors answers into contact custom fields.
func WithCustomFieldStore(f ports.CustomFieldStore) Option {
	return func(e *Engine) { e.fields = f }
}

// WithDispatcher performs the actions of every successful call.
// Dispatch failures are logged; the actions are still returned.
func WithDispatcher(d ports.ActionDispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStrictPersistence makes session save failures abort the call.
func WithStrictPersistence(strict bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithStrictPersistence(strict))
	}
}

// WithCheckpoint selects the persistence point of the execution loop.
func WithCheckpoint(c Checkpoint) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCheckpoint(c))
	}
}

// WithConditionFallback selects the behavior of conditions without a matching edge.
func WithConditionFallback(f ConditionFallback) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithConditionFallback(f))
	}
}

// WithMaxSteps bounds the steps a single call may execute.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithConflictRetries retries a call that lost an optimistic concurrency race.
func WithConflictRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.flows == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if e.store == nil {
		e.store = memory.NewSessionStore()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)
	return e, nil
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Flow resolves a flow by id or key.
func (e *Engine) Flow(ctx context.Context, ref string) (*domain.Flow, error) {
	return e.flows.GetFlow(ctx, ref)
}

// Start runs flowRef for sessionID from its start step until the first
// suspension or completion. An empty sessionID gets a generated one.
func (e *Engine) Start(ctx context.Context, flowRef, sessionID string, bindings map[string]any) (*Result, error) {
	flow, err := e.flows.GetFlow(ctx, flowRef)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return e.call(ctx, sessionID, func(ctx context.Context, store ports.SessionStore) (*Result, error) {
		rt, err := e.runtime(flow, store)
		if err != nil {
			return nil, err
		}
		return rt.Start(ctx, sessionID, domain.NewBindings(bindings))
	})
}

// StartAt runs flowRef for sessionID from stepID. Bindings are merged over
// those of an existing session.
func (e *Engine) StartAt(ctx context.Context, flowRef, sessionID, stepID string, bindings map[string]any) (*Result, error) {
	flow, err := e.flows.GetFlow(ctx, flowRef)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return e.call(ctx, sessionID, func(ctx context.Context, store ports.SessionStore) (*Result, error) {
		rt, err := e.runtime(flow, store)
		if err != nil {
			return nil, err
		}
		return rt.ExecuteFromStep(ctx, sessionID, stepID, domain.NewBindings(bindings))
	})
}

// Resume answers the question the session is suspended on and continues the run.
func (e *Engine) Resume(ctx context.Context, sessionID, stepID, answer, optionID string) (*Result, error) {
	return e.call(ctx, sessionID, func(ctx context.Context, store ports.SessionStore) (*Result, error) {
		rt, err := e.runtimeFor(ctx, store, sessionID)
		if err != nil {
			return nil, err
		}
		return rt.ContinueFromQuestion(ctx, sessionID, stepID, answer, optionID)
	})
}

// Inbound applies a contact message to sessionID as a single locked call.
// It answers the question the session waits on, or starts flowRef with
// bindings when the session does not exist or has ended. A message for a
// session that is mid-run or waiting on a timer is ignored: Inbound then
// returns a nil Result and no error.
func (e *Engine) Inbound(ctx context.Context, flowRef, sessionID, text, optionID string, bindings map[string]any) (*Result, error) {
	return e.call(ctx, sessionID, func(ctx context.Context, store ports.SessionStore) (*Result, error) {
		s, err := store.Load(ctx, sessionID)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound) || (err == nil && s.Status.Terminal()):
			flow, err := e.flows.GetFlow(ctx, flowRef)
			if err != nil {
				return nil, err
			}
			rt, err := e.runtime(flow, store)
			if err != nil {
				return nil, err
			}
			return rt.Start(ctx, sessionID, domain.NewBindings(bindings))
		case err != nil:
			return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
		case s.SuspendedOnQuestion():
			rt, err := e.bind(ctx, store, s)
			if err != nil {
				return nil, err
			}
			return rt.ContinueFromQuestion(ctx, sessionID, s.CurrentStepID, text, optionID)
		default:
			e.logger.DebugContext(ctx, "inbound message ignored", "session_id", sessionID, "suspension", s.Suspension)
			return nil, nil
		}
	})
}

// Wake continues a session suspended on a wait step.
func (e *Engine) Wake(ctx context.Context, sessionID string) (*Result, error) {
	return e.call(ctx, sessionID, func(ctx context.Context, store ports.SessionStore) (*Result, error) {
		rt, err := e.runtimeFor(ctx, store, sessionID)
		if err != nil {
			return nil, err
		}
		return rt.ResumeAfterWait(ctx, sessionID)
	})
}

// Cancel moves the session to the terminal cancelled status.
// Cancelling a cancelled session is a no-op; a completed one is not resumable.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	return e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := e.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		switch s.Status {
		case domain.StatusCancelled:
			return nil
		case domain.StatusCompleted:
			return &domain.NotResumableError{SessionID: sessionID, Status: s.Status, Reason: "session has ended"}
		}
		s.Status = domain.StatusCancelled
		s.Suspension = domain.SuspendNone
		s.ResumeStepID = ""
		if err := e.store.Save(ctx, s); err != nil {
			return fmt.Errorf("failed to cancel session %q: %w", sessionID, err)
		}
		e.logger.InfoContext(ctx, "session cancelled", "session_id", sessionID, "step_id", s.CurrentStepID)
		return nil
	})
}

// Session returns the current snapshot of a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, sessionID)
}

// runtimeFor binds a runtime engine to the flow of an existing session.
func (e *Engine) runtimeFor(ctx context.Context, store ports.SessionStore, sessionID string) (*runtime.Engine, error) {
	s, err := store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, &domain.NotResumableError{SessionID: sessionID, Reason: "session does not exist"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}
	return e.bind(ctx, store, s)
}

func (e *Engine) bind(ctx context.Context, store ports.SessionStore, s *domain.Session) (*runtime.Engine, error) {
	flow, err := e.flows.GetFlow(ctx, s.FlowID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", s.ID, err)
	}
	return e.runtime(flow, store)
}

func (e *Engine) runtime(flow *domain.Flow, store ports.SessionStore) (*runtime.Engine, error) {
	opts := []runtime.EngineOption{
		runtime.WithSessionStore(store),
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	if e.answers != nil {
		opts = append(opts, runtime.WithAnswerLog(e.answers))
	}
	if e.fields != nil {
		opts = append(opts, runtime.WithCustomFieldStore(e.fields))
	}
	opts = append(opts, e.runtimeOpts...)
	return runtime.NewEngine(flow, opts...)
}

// attemptStore notes whether a save of one call attempt went through.
type attemptStore struct {
	ports.SessionStore
	saved bool
}

func (a *attemptStore) Save(ctx context.Context, s *domain.Session) error {
	err := a.SessionStore.Save(ctx, s)
	if err == nil {
		a.saved = true
	}
	return err
}

// call runs fn under the session lock, retrying lost races, then dispatches
// the resulting actions outside the lock. An attempt that already saved part
// of its progress is not replayed: the conflict is returned as is.
func (e *Engine) call(ctx context.Context, sessionID string, fn func(context.Context, ports.SessionStore) (*Result, error)) (*Result, error) {
	var res *Result
	var err error
	for attempt := 0; ; attempt++ {
		store := &attemptStore{SessionStore: e.store}
		err = e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
			var runErr error
			res, runErr = fn(ctx, store)
			return runErr
		})
		if err == nil || !session.IsRetryable(err) || attempt >= e.retries {
			break
		}
		if store.saved {
			e.logger.WarnContext(ctx, "session conflict after partial save, not retrying", "session_id", sessionID, "attempt", attempt+1)
			break
		}
		e.logger.WarnContext(ctx, "session conflict, retrying", "session_id", sessionID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	if res != nil {
		e.dispatch(ctx, sessionID, res.Actions)
	}
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, sessionID string, actions []domain.Action) {
	if e.dispatcher == nil {
		return
	}
	for _, a := range actions {
		if err := e.dispatcher.Dispatch(ctx, sessionID, a); err != nil {
			e.logger.WarnContext(ctx, "failed to dispatch action",
				"session_id", sessionID,
				"kind", a.Kind,
				"err", err,
			)
		}
	}
}
