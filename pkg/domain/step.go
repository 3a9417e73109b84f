package domain

import (
	"encoding/json"
	"time"
)

// StepKind identifies the behavior of a step in the flow graph.
type StepKind string

// Step catalog.
const (
	// KindStart marks the entry point of a flow. It emits nothing.
	KindStart StepKind = "start"
	// KindSendMessage sends an interpolated text message and continues (soft step).
	KindSendMessage StepKind = "send_message"
	// KindQuestionSimple asks a free-text question and halts until answered (hard step).
	KindQuestionSimple StepKind = "question_simple"
	// KindQuestionMultiple asks a question with options and halts until answered.
	// Each option may route to its own branch.
	KindQuestionMultiple StepKind = "question_multiple"
	// KindWait pauses the run until an external scheduler wakes it up.
	KindWait StepKind = "wait"
	// KindCondition branches on a comparison between a variable and a literal.
	KindCondition StepKind = "condition"
	// KindTemplate sends a pre-approved WhatsApp template.
	KindTemplate StepKind = "template"
	// KindAssignConversation hands the conversation over to a human.
	KindAssignConversation StepKind = "assign_conversation"
)

var knownKinds = map[StepKind]bool{
	KindStart:              true,
	KindSendMessage:        true,
	KindQuestionSimple:     true,
	KindQuestionMultiple:   true,
	KindWait:               true,
	KindCondition:          true,
	KindTemplate:           true,
	KindAssignConversation: true,
}

// Known reports whether the kind belongs to the step catalog.
func (k StepKind) Known() bool {
	return knownKinds[k]
}

// IsQuestion reports whether the kind halts waiting for a user answer.
func (k StepKind) IsQuestion() bool {
	return k == KindQuestionSimple || k == KindQuestionMultiple
}

// Branching reports whether the kind may legitimately have several outgoing connections.
func (k StepKind) Branching() bool {
	return k == KindCondition || k == KindQuestionMultiple
}

// Step is one node of a Flow.
type Step struct {
	ID     string     `json:"id" yaml:"id"`
	Kind   StepKind   `json:"type" yaml:"type"`
	Config StepConfig `json:"-" yaml:"-"`
}

// MarshalJSON encodes the step with its config inline, in the shape the
// flow compiler reads back.
func (s Step) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID     string   `json:"id"`
		Kind   StepKind `json:"type"`
		Config any      `json:"config,omitempty"`
	}
	var cfg any
	switch c := s.Config.(type) {
	case nil, StartConfig:
	case UnhandledConfig:
		cfg = c.Raw
	default:
		cfg = c
	}
	return json.Marshal(wire{ID: s.ID, Kind: s.Kind, Config: cfg})
}

// StepConfig is the kind-specific configuration of a step.
// The set of implementations is closed; see the *Config types in this package.
type StepConfig interface {
	stepKind() StepKind
}

// StartConfig configures a start step.
type StartConfig struct{}

// SendMessageConfig configures a send_message step.
type SendMessageConfig struct {
	Message string `json:"message" mapstructure:"message" validate:"required"`
}

// QuestionOption is one selectable answer of a multiple-choice question.
type QuestionOption struct {
	ID    string `json:"id" mapstructure:"id" validate:"required"`
	Label string `json:"label" mapstructure:"label" validate:"required"`
}

// QuestionConfig configures both question kinds.
type QuestionConfig struct {
	Question string `json:"question" mapstructure:"question" validate:"required"`
	// Variable is the binding name the answer is stored under.
	// Empty means the step id.
	Variable string `json:"variable,omitempty" mapstructure:"variable"`
	// CustomFieldID, when set, mirrors the answer into the contact's custom field.
	CustomFieldID string           `json:"custom_field_id,omitempty" mapstructure:"custom_field_id"`
	Options       []QuestionOption `json:"options,omitempty" mapstructure:"options" validate:"dive"`

	multiple bool
}

// Multiple reports whether the config belongs to a question_multiple step.
func (c QuestionConfig) Multiple() bool {
	return c.multiple
}

// AsMultiple returns a copy of the config flagged as multiple-choice.
func (c QuestionConfig) AsMultiple() QuestionConfig {
	c.multiple = true
	return c
}

// StorageKey returns the binding name the answer of step stepID is stored under.
func (c QuestionConfig) StorageKey(stepID string) string {
	if c.Variable != "" {
		return c.Variable
	}
	return stepID
}

// WaitUnit is the unit of a wait duration.
type WaitUnit string

const (
	UnitSeconds WaitUnit = "seconds"
	UnitMinutes WaitUnit = "minutes"
	UnitHours   WaitUnit = "hours"
	UnitDays    WaitUnit = "days"
)

// MaxWaitDuration bounds the duration of a wait in any unit. A century of
// days still fits a time.Duration.
const MaxWaitDuration = 36500

// WaitConfig configures a wait step.
type WaitConfig struct {
	Duration int      `json:"duration" mapstructure:"duration" validate:"gte=0,lte=36500"`
	Unit     WaitUnit `json:"unit" mapstructure:"unit" default:"minutes" validate:"oneof=seconds minutes hours days"`
}

// Interval converts the configured wait to a time.Duration.
func (c WaitConfig) Interval() time.Duration {
	return Interval(c.Duration, c.Unit)
}

// Interval converts a duration expressed in unit to a time.Duration.
// Unknown units are read as minutes; durations over MaxWaitDuration are capped.
func Interval(duration int, unit WaitUnit) time.Duration {
	d := time.Duration(min(duration, MaxWaitDuration))
	switch unit {
	case UnitSeconds:
		return d * time.Second
	case UnitHours:
		return d * time.Hour
	case UnitDays:
		return d * 24 * time.Hour
	default:
		return d * time.Minute
	}
}

// Operator is a comparison supported by condition steps.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// ConditionConfig configures a condition step.
type ConditionConfig struct {
	Variable string   `json:"variable" mapstructure:"variable" validate:"required"`
	Operator Operator `json:"operator" mapstructure:"operator" default:"equals" validate:"oneof=equals contains greater_than less_than"`
	Value    string   `json:"value" mapstructure:"value"`
}

// TemplateConfig configures a template step.
type TemplateConfig struct {
	Template string `json:"template" mapstructure:"template" validate:"required"`
	Language string `json:"language" mapstructure:"language" default:"es"`
	// Variables are the template parameters, keyed by position ("1", "2", ...) or name.
	// Values are interpolated against the session bindings.
	Variables map[string]string `json:"variables,omitempty" mapstructure:"variables"`
}

// AssignConversationConfig configures an assign_conversation step.
type AssignConversationConfig struct {
	AssigneeID string `json:"assignee_id" mapstructure:"assignee_id" validate:"required"`
	// AssigneeType selects the emitted action: empty or "admin" emits assign_to_admin,
	// anything else emits assign_conversation.
	AssigneeType string `json:"assignee_type,omitempty" mapstructure:"assignee_type"`
	NotifyEmail  string `json:"notify_email,omitempty" mapstructure:"notify_email" validate:"omitempty,email"`
	EmailSubject string `json:"email_subject,omitempty" mapstructure:"email_subject" default:"Nueva conversación asignada"`
}

// UnhandledConfig keeps the raw configuration of a step kind this engine does not know.
// Such steps advance unconditionally without emitting actions.
type UnhandledConfig struct {
	Kind string
	Raw  map[string]any
}

func (StartConfig) stepKind() StepKind              { return KindStart }
func (SendMessageConfig) stepKind() StepKind        { return KindSendMessage }
func (WaitConfig) stepKind() StepKind               { return KindWait }
func (ConditionConfig) stepKind() StepKind          { return KindCondition }
func (TemplateConfig) stepKind() StepKind           { return KindTemplate }
func (AssignConversationConfig) stepKind() StepKind { return KindAssignConversation }
func (c UnhandledConfig) stepKind() StepKind        { return StepKind(c.Kind) }

func (c QuestionConfig) stepKind() StepKind {
	if c.multiple {
		return KindQuestionMultiple
	}
	return KindQuestionSimple
}

// ConfigKind returns the kind a config variant belongs to.
func ConfigKind(c StepConfig) StepKind {
	if c == nil {
		return ""
	}
	return c.stepKind()
}
