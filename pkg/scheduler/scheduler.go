// Package scheduler turns wait actions into delayed wake-ups.
//
// The engine never sleeps: a wait step returns a wait action and suspends the
// session. The Scheduler is an ActionDispatcher that arms an in-process timer
// for each wait action and calls Wake when it fires. Timers do not survive a
// restart; call Recover on boot to re-arm the waits persisted in the store.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
)

// Waker continues a session suspended on a wait step.
type Waker interface {
	Wake(ctx context.Context, sessionID string) (*domain.RunResult, error)
}

// WakerFunc adapts a function to Waker. It allows binding the scheduler to an
// engine that is built after it.
type WakerFunc func(ctx context.Context, sessionID string) (*domain.RunResult, error)

func (f WakerFunc) Wake(ctx context.Context, sessionID string) (*domain.RunResult, error) {
	return f(ctx, sessionID)
}

// Scheduler implements ports.ActionDispatcher for wait actions.
type Scheduler struct {
	waker  Waker
	logger *slog.Logger
	delay  func(domain.Wait) time.Duration
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDelay overrides how a wait maps to a timer duration.
func WithDelay(fn func(domain.Wait) time.Duration) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.delay = fn
		}
	}
}

// New creates a Scheduler waking sessions through waker.
func New(waker Waker, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		waker:  waker,
		logger: logging.NewNop(),
		delay:  func(w domain.Wait) time.Duration { return domain.Interval(w.Duration, w.Unit) },
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch arms a timer for wait actions. Other kinds are ignored.
func (s *Scheduler) Dispatch(ctx context.Context, sessionID string, action domain.Action) error {
	w, ok := action.Payload.(domain.Wait)
	if !ok {
		return nil
	}
	s.Schedule(sessionID, s.delay(w))
	return nil
}

// Schedule wakes sessionID after d, replacing any pending wake-up of the session.
func (s *Scheduler) Schedule(sessionID string, d time.Duration) {
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if t, ok := s.timers[sessionID]; ok && t.Stop() {
		s.wg.Done()
	}

	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.mu.Lock()
		if s.timers[sessionID] == t {
			delete(s.timers, sessionID)
		}
		s.mu.Unlock()
		s.fire(sessionID)
	})
	s.timers[sessionID] = t
	s.logger.Debug("wake scheduled", "session_id", sessionID, "in", d)
}

func (s *Scheduler) fire(sessionID string) {
	if s.ctx.Err() != nil {
		return
	}
	_, err := s.waker.Wake(s.ctx, sessionID)
	switch {
	case err == nil:
		s.logger.Info("session woken", "session_id", sessionID)
	case errors.Is(err, domain.ErrNotResumable):
		// Answered, cancelled or restarted meanwhile.
		s.logger.Debug("wake skipped", "session_id", sessionID, "err", err)
	default:
		s.logger.Error("failed to wake session", "session_id", sessionID, "err", err)
	}
}

// Cancel drops the pending wake-up of sessionID.
func (s *Scheduler) Cancel(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[sessionID]
	if !ok {
		return false
	}
	delete(s.timers, sessionID)
	if t.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and waits for running wake-ups to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Recover re-arms the waits of every session suspended on a wait step.
// The due time is the last save of the session plus the wait interval.
// It returns the number of sessions scheduled.
func (s *Scheduler) Recover(ctx context.Context, sessions ports.SessionStore, flows ports.FlowStore) (int, error) {
	ids, err := sessions.List(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		sess, err := sessions.Load(ctx, id)
		if err != nil {
			s.logger.Warn("skipping session on recover", "session_id", id, "err", err)
			continue
		}
		if !sess.SuspendedOnWait() {
			continue
		}
		flow, err := flows.GetFlow(ctx, sess.FlowID)
		if err != nil {
			s.logger.Warn("skipping session on recover", "session_id", id, "err", err)
			continue
		}
		step, ok := flow.Step(sess.CurrentStepID)
		if !ok {
			continue
		}
		cfg, ok := step.Config.(domain.WaitConfig)
		if !ok {
			continue
		}
		due := sess.UpdatedAt.Add(s.delay(domain.Wait{Duration: cfg.Duration, Unit: cfg.Unit}))
		s.Schedule(id, time.Until(due))
		n++
	}
	return n, nil
}
