package domain

import "time"

// SessionStatus is the lifecycle status of a session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"    // Cursor points at a step
	StatusCompleted SessionStatus = "completed" // Graph exhausted
	StatusCancelled SessionStatus = "cancelled" // Stopped by an operator
)

// Terminal reports whether no further execution is allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Suspension describes why an active session returned control to the caller.
type Suspension string

const (
	SuspendNone     Suspension = ""
	SuspendQuestion Suspension = "question" // Waiting for a user answer
	SuspendWait     Suspension = "wait"     // Waiting for a scheduled wake-up
)

// Session is the durable execution cursor of one run of a flow.
type Session struct {
	ID            string        `json:"id"`
	FlowID        string        `json:"flow_id"`
	CurrentStepID string        `json:"current_step_id,omitempty"`
	Bindings      Bindings      `json:"bindings"`
	Status        SessionStatus `json:"status"`
	Suspension    Suspension    `json:"suspension,omitempty"`

	// ResumeStepID is the step a wait suspension continues at.
	ResumeStepID string `json:"resume_step_id,omitempty"`

	// Version is incremented by the store on every successful save.
	// Stores reject saves carrying a stale version with ErrConflict.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an active session of flowID positioned at stepID.
func NewSession(id, flowID, stepID string, bindings Bindings) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		FlowID:        flowID,
		CurrentStepID: stepID,
		Bindings:      bindings,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a copy safe for independent mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Bindings = NewBindings(s.Bindings.Map())
	return &c
}

// SuspendedOnQuestion reports whether the session waits for an answer to stepID.
func (s *Session) SuspendedOnQuestion() bool {
	return s.Status == StatusActive && s.Suspension == SuspendQuestion
}

// SuspendedOnWait reports whether the session waits for a scheduled wake-up.
func (s *Session) SuspendedOnWait() bool {
	return s.Status == StatusActive && s.Suspension == SuspendWait
}

// Answer is one recorded answer to a question step.
type Answer struct {
	FlowID     string    `json:"flow_id"`
	SessionID  string    `json:"session_id"`
	StepID     string    `json:"step_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	OptionID   string    `json:"option_id,omitempty"`
	AnsweredAt time.Time `json:"answered_at"`
}
