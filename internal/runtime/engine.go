package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// DefaultMaxSteps bounds the steps one call may execute.
const DefaultMaxSteps = 500

// Checkpoint selects when the loop persists the cursor of a non-suspending step.
type Checkpoint int

const (
	// CheckpointBefore saves the cursor before running a step. A crash re-runs
	// the step on recovery, so sends may be delivered twice (at-least-once).
	CheckpointBefore Checkpoint = iota
	// CheckpointAfter saves the cursor once the step has run, pointing at the
	// next step. A crash loses the step's actions (at-most-once).
	CheckpointAfter
)

// Engine walks one flow for one call. It is not shared across requests.
type Engine struct {
	flow  *domain.Flow
	start domain.Step
	nav   Navigator

	store   ports.SessionStore
	answers ports.AnswerLog
	fields  ports.CustomFieldStore

	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	strict     bool
	checkpoint Checkpoint
	fallback   ConditionFallback
	maxSteps   int
}

// EngineOption configures the runtime Engine.
type EngineOption func(*Engine)

// WithSessionStore sets the store sessions are persisted to. Required.
func WithSessionStore(s ports.SessionStore) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithAnswerLog records question answers.
func WithAnswerLog(l ports.AnswerLog) EngineOption {
	return func(e *Engine) { e.answers = l }
}

// WithCustomFieldStore mirrors answers into contact custom fields.
func WithCustomFieldStore(f ports.CustomFieldStore) EngineOption {
	return func(e *Engine) { e.fields = f }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) { e.hooks = hooks }
}

// WithStrictPersistence makes session save failures abort the call.
// By default they are logged and execution continues.
func WithStrictPersistence(strict bool) EngineOption {
	return func(e *Engine) { e.strict = strict }
}

// WithCheckpoint selects the persistence point of the loop.
func WithCheckpoint(c Checkpoint) EngineOption {
	return func(e *Engine) { e.checkpoint = c }
}

// WithConditionFallback selects what a condition does when no labeled edge matches.
func WithConditionFallback(f ConditionFallback) EngineOption {
	return func(e *Engine) { e.fallback = f }
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine binds an engine to flow. It fails when the flow breaks the
// single start step invariant.
func NewEngine(flow *domain.Flow, opts ...EngineOption) (*Engine, error) {
	if flow == nil {
		return nil, fmt.Errorf("flow is required")
	}
	e := &Engine{
		flow:     flow,
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	start, err := flow.StartStep()
	if err != nil {
		return nil, err
	}
	e.start = start
	e.nav = NewNavigator(flow, e.fallback)
	e.logger = e.logger.With("flow_id", flow.ID)
	return e, nil
}

// Flow returns the flow the engine is bound to.
func (e *Engine) Flow() *domain.Flow {
	return e.flow
}

// Start runs the flow for sessionID from its start step.
// An existing session of the same id is restarted with fresh bindings.
func (e *Engine) Start(ctx context.Context, sessionID string, initial domain.Bindings) (*domain.RunResult, error) {
	s, err := e.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		s = domain.NewSession(sessionID, e.flow.ID, e.start.ID, initial)
	case err != nil:
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	default:
		e.logger.InfoContext(ctx, "restarting session", "session_id", sessionID, "previous_status", s.Status)
		s.FlowID = e.flow.ID
		s.Bindings = initial
		s.ResumeStepID = ""
	}
	return e.run(ctx, s, e.start.ID)
}

// ExecuteFromStep runs the flow for sessionID from stepID, creating the session
// when it does not exist. initial is merged over the bindings of an existing session.
func (e *Engine) ExecuteFromStep(ctx context.Context, sessionID, stepID string, initial domain.Bindings) (*domain.RunResult, error) {
	if _, ok := e.flow.Step(stepID); !ok {
		return nil, &domain.StepNotFoundError{FlowID: e.flow.ID, StepID: stepID}
	}

	s, err := e.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		s = domain.NewSession(sessionID, e.flow.ID, stepID, initial)
	case err != nil:
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	default:
		s.FlowID = e.flow.ID
		s.Bindings = s.Bindings.Merge(initial)
		s.ResumeStepID = ""
	}
	return e.run(ctx, s, stepID)
}

// ContinueFromQuestion stores the answer to the question the session is
// suspended on and resumes the run at the branch it selects.
// optionID may be empty; for multiple-choice questions a typed answer matching
// an option number, label or id then selects the option.
func (e *Engine) ContinueFromQuestion(ctx context.Context, sessionID, stepID, answer, optionID string) (*domain.RunResult, error) {
	s, err := e.loadResumable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.SuspendedOnQuestion() {
		return nil, &domain.NotResumableError{SessionID: sessionID, Status: s.Status, Reason: "session is not waiting for an answer"}
	}
	if s.CurrentStepID != stepID {
		return nil, &domain.NotResumableError{
			SessionID: sessionID,
			Status:    s.Status,
			Reason:    fmt.Sprintf("session waits on step %q, not %q", s.CurrentStepID, stepID),
		}
	}

	step, ok := e.flow.Step(stepID)
	if !ok {
		return nil, &domain.StepNotFoundError{FlowID: e.flow.ID, StepID: stepID}
	}
	cfg, ok := step.Config.(domain.QuestionConfig)
	if !ok {
		return nil, &domain.NotResumableError{SessionID: sessionID, Status: s.Status, Reason: fmt.Sprintf("step %q is not a question", stepID)}
	}

	value := answer
	if cfg.Multiple() {
		if optionID == "" {
			if o, found := matchOption(cfg.Options, answer); found {
				optionID = o.ID
				value = o.Label
			}
		} else if value == "" {
			if o, found := optionByID(cfg.Options, optionID); found {
				value = o.Label
			}
		}
	}

	question := Interpolate(cfg.Question, s.Bindings)
	s.Bindings = s.Bindings.With(cfg.StorageKey(stepID), value)
	e.recordAnswer(ctx, s, stepID, question, value, optionID, cfg.CustomFieldID)

	var next string
	if cfg.Multiple() {
		next, _ = e.nav.NextByOption(stepID, optionID)
	} else {
		next, _ = e.nav.NextUnconditional(stepID)
	}

	e.logger.InfoContext(ctx, "question answered",
		"session_id", sessionID,
		"step_id", stepID,
		"option_id", optionID,
		"next", next,
	)

	if next == "" {
		return e.complete(ctx, s, nil, false)
	}
	return e.run(ctx, s, next)
}

// ResumeAfterWait continues a session suspended on a wait step at the step
// recorded when it suspended.
func (e *Engine) ResumeAfterWait(ctx context.Context, sessionID string) (*domain.RunResult, error) {
	s, err := e.loadResumable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.SuspendedOnWait() {
		return nil, &domain.NotResumableError{SessionID: sessionID, Status: s.Status, Reason: "session is not waiting for a timer"}
	}

	next := s.ResumeStepID
	s.ResumeStepID = ""
	if next == "" {
		return e.complete(ctx, s, nil, false)
	}
	return e.run(ctx, s, next)
}

// loadResumable loads a session that may still run.
func (e *Engine) loadResumable(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := e.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, &domain.NotResumableError{SessionID: sessionID, Reason: "session does not exist"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}
	if s.Status.Terminal() {
		return nil, &domain.NotResumableError{SessionID: sessionID, Status: s.Status, Reason: "session has ended"}
	}
	if s.FlowID != e.flow.ID {
		return nil, &domain.NotResumableError{
			SessionID: sessionID,
			Status:    s.Status,
			Reason:    fmt.Sprintf("session belongs to flow %q", s.FlowID),
		}
	}
	return s, nil
}

// run is the execution loop: persist, execute, collect actions, advance.
func (e *Engine) run(ctx context.Context, s *domain.Session, stepID string) (*domain.RunResult, error) {
	log := e.logger.With("session_id", s.ID)
	var actions []domain.Action
	current := stepID

	for steps := 0; ; steps++ {
		if steps >= e.maxSteps {
			return nil, fmt.Errorf("session %q stopped at step %q after %d steps: %w", s.ID, current, steps, domain.ErrStepLimitExceeded)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, ok := e.flow.Step(current)
		if !ok {
			return nil, &domain.StepNotFoundError{FlowID: e.flow.ID, StepID: current}
		}

		s.CurrentStepID = current
		s.Status = domain.StatusActive
		s.Suspension = domain.SuspendNone
		if e.checkpoint == CheckpointBefore {
			if err := e.persist(ctx, s); err != nil {
				return nil, err
			}
		}

		e.emitStepEnter(ctx, s, step)
		out, err := e.execute(ctx, step, s)
		if err != nil {
			return nil, err
		}
		actions = append(actions, out.Actions...)
		s.Bindings = out.Bindings
		e.emitStepLeave(ctx, s, step, out.Actions)

		log.DebugContext(ctx, "step executed",
			"step_id", step.ID,
			"kind", step.Kind,
			"actions", len(out.Actions),
			"next", out.Next,
		)

		switch {
		case out.Suspend == domain.SuspendWait && out.Next == "":
			// Nothing to wake up into; the wait action is still returned.
			return e.complete(ctx, s, actions, false)

		case out.Suspend != domain.SuspendNone:
			s.Suspension = out.Suspend
			s.ResumeStepID = out.Next
			if err := e.persist(ctx, s); err != nil {
				return nil, err
			}
			log.InfoContext(ctx, "session suspended",
				"step_id", step.ID,
				"suspension", s.Suspension,
				"resume_step_id", s.ResumeStepID,
			)
			e.emitSession(ctx, domain.EventSuspend, s, nil)
			return e.result(s, actions), nil

		case out.Next == "":
			return e.complete(ctx, s, actions, out.DeadEnd)
		}

		if e.checkpoint == CheckpointAfter {
			s.CurrentStepID = out.Next
			if err := e.persist(ctx, s); err != nil {
				return nil, err
			}
		}
		current = out.Next
	}
}

// complete marks the session as finished and persists it.
func (e *Engine) complete(ctx context.Context, s *domain.Session, actions []domain.Action, deadEnd bool) (*domain.RunResult, error) {
	last := s.CurrentStepID
	s.Status = domain.StatusCompleted
	s.CurrentStepID = ""
	s.Suspension = domain.SuspendNone
	s.ResumeStepID = ""
	if err := e.persist(ctx, s); err != nil {
		return nil, err
	}

	if deadEnd {
		e.logger.WarnContext(ctx, "flow dead end", "session_id", s.ID, "step_id", last)
		e.emitSession(ctx, domain.EventDeadEnd, s, nil)
	} else {
		e.logger.InfoContext(ctx, "flow completed", "session_id", s.ID, "step_id", last)
		e.emitSession(ctx, domain.EventComplete, s, nil)
	}
	return e.result(s, actions), nil
}

func (e *Engine) result(s *domain.Session, actions []domain.Action) *domain.RunResult {
	if actions == nil {
		actions = []domain.Action{}
	}
	return &domain.RunResult{
		Actions:    actions,
		Session:    s.Clone(),
		NextStepID: s.ResumeStepID,
	}
}

// persist saves the session. Conflicts always abort; other failures abort
// only under strict persistence.
func (e *Engine) persist(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	err := e.store.Save(ctx, s)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("session %q: %w", s.ID, err)
	}
	if e.strict {
		return fmt.Errorf("failed to persist session %q: %w", s.ID, err)
	}
	e.logger.WarnContext(ctx, "failed to persist session, continuing",
		"session_id", s.ID,
		"step_id", s.CurrentStepID,
		"err", err,
	)
	e.emitSession(ctx, domain.EventPersistErr, s, err)
	return nil
}

// recordAnswer feeds the side collaborators. Failures never abort the call.
func (e *Engine) recordAnswer(ctx context.Context, s *domain.Session, stepID, question, value, optionID, fieldID string) {
	if e.answers != nil {
		err := e.answers.AppendAnswer(ctx, domain.Answer{
			FlowID:     e.flow.ID,
			SessionID:  s.ID,
			StepID:     stepID,
			Question:   question,
			Answer:     value,
			OptionID:   optionID,
			AnsweredAt: time.Now().UTC(),
		})
		if err != nil {
			e.logger.WarnContext(ctx, "failed to append answer", "session_id", s.ID, "step_id", stepID, "err", err)
		}
	}

	if e.fields == nil || fieldID == "" {
		return
	}
	contact := s.Bindings.String(domain.KeyPhone)
	if contact == "" {
		e.logger.DebugContext(ctx, "no contact key, skipping custom field", "session_id", s.ID, "field_id", fieldID)
		return
	}
	if err := e.fields.UpsertCustomFieldValue(ctx, contact, fieldID, value); err != nil {
		e.logger.WarnContext(ctx, "failed to upsert custom field", "session_id", s.ID, "field_id", fieldID, "err", err)
	}
}

func (e *Engine) base(t domain.EventType, s *domain.Session) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, FlowID: e.flow.ID, SessionID: s.ID}
}

func (e *Engine) emitStepEnter(ctx context.Context, s *domain.Session, step domain.Step) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: e.base(domain.EventStepEnter, s),
		StepID:    step.ID,
		StepKind:  step.Kind,
	})
}

func (e *Engine) emitStepLeave(ctx context.Context, s *domain.Session, step domain.Step, actions []domain.Action) {
	if e.hooks.OnStepLeave == nil {
		return
	}
	e.hooks.OnStepLeave(ctx, &domain.StepEvent{
		EventBase: e.base(domain.EventStepLeave, s),
		StepID:    step.ID,
		StepKind:  step.Kind,
		Actions:   actions,
	})
}

func (e *Engine) emitSession(ctx context.Context, t domain.EventType, s *domain.Session, err error) {
	if e.hooks.OnSessionEvent == nil {
		return
	}
	e.hooks.OnSessionEvent(ctx, &domain.SessionEvent{
		EventBase:  e.base(t, s),
		StepID:     s.CurrentStepID,
		Suspension: s.Suspension,
		Err:        err,
	})
}
