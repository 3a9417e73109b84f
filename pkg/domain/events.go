package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter  EventType = "step_enter"
	EventStepLeave  EventType = "step_leave"
	EventSuspend    EventType = "suspend"
	EventComplete   EventType = "complete"
	EventDeadEnd    EventType = "dead_end"
	EventPersistErr EventType = "persist_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FlowID    string    `json:"flow_id"`
	SessionID string    `json:"session_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	StepID   string   `json:"step_id"`
	StepKind StepKind `json:"step_kind"`
	Actions  []Action `json:"actions,omitempty"` // Set on leave
}

// SessionEvent represents a change of the session lifecycle (suspend, complete, dead end).
type SessionEvent struct {
	EventBase
	StepID     string     `json:"step_id,omitempty"`
	Suspension Suspension `json:"suspension,omitempty"`
	Err        error      `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStepEnter    func(context.Context, *StepEvent)
	OnStepLeave    func(context.Context, *StepEvent)
	OnSessionEvent func(context.Context, *SessionEvent)
}
