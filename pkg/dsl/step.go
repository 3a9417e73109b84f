package dsl

import "github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step    domain.Step
	builder *Builder
}

func (s *StepBuilder) set(cfg domain.StepConfig) *StepBuilder {
	s.step.Kind = domain.ConfigKind(cfg)
	s.step.Config = cfg
	return s
}

// Start marks the step as the entry point of the flow.
func (s *StepBuilder) Start() *StepBuilder {
	return s.set(domain.StartConfig{})
}

// SendMessage sends a text (soft step).
func (s *StepBuilder) SendMessage(message string) *StepBuilder {
	return s.set(domain.SendMessageConfig{Message: message})
}

// Question asks a free-text question (hard step).
func (s *StepBuilder) Question(question string) *StepBuilder {
	return s.set(domain.QuestionConfig{Question: question})
}

// Choice asks a multiple-choice question. Use When to branch per option.
func (s *StepBuilder) Choice(question string, options ...domain.QuestionOption) *StepBuilder {
	return s.set(domain.QuestionConfig{Question: question, Options: options}.AsMultiple())
}

// Option is a shorthand for a QuestionOption.
func Option(id, label string) domain.QuestionOption {
	return domain.QuestionOption{ID: id, Label: label}
}

// SaveTo specifies the binding the answer of a question is stored under.
func (s *StepBuilder) SaveTo(variable string) *StepBuilder {
	if cfg, ok := s.step.Config.(domain.QuestionConfig); ok {
		cfg.Variable = variable
		s.step.Config = cfg
	}
	return s
}

// CustomField mirrors the answer of a question into a contact custom field.
func (s *StepBuilder) CustomField(fieldID string) *StepBuilder {
	if cfg, ok := s.step.Config.(domain.QuestionConfig); ok {
		cfg.CustomFieldID = fieldID
		s.step.Config = cfg
	}
	return s
}

// Wait pauses the run until the scheduler wakes it up.
func (s *StepBuilder) Wait(duration int, unit domain.WaitUnit) *StepBuilder {
	return s.set(domain.WaitConfig{Duration: duration, Unit: unit})
}

// Condition branches on variable <op> value. Use WhenTrue and WhenFalse.
func (s *StepBuilder) Condition(variable string, op domain.Operator, value string) *StepBuilder {
	return s.set(domain.ConditionConfig{Variable: variable, Operator: op, Value: value})
}

// Template sends a pre-approved WhatsApp template.
func (s *StepBuilder) Template(name, language string, variables map[string]string) *StepBuilder {
	return s.set(domain.TemplateConfig{Template: name, Language: language, Variables: variables})
}

// Assign hands the conversation over. An empty assigneeType means an admin.
func (s *StepBuilder) Assign(assigneeID, assigneeType string) *StepBuilder {
	return s.set(domain.AssignConversationConfig{AssigneeID: assigneeID, AssigneeType: assigneeType})
}

// Notify adds an email notification to an assign step.
func (s *StepBuilder) Notify(email, subject string) *StepBuilder {
	if cfg, ok := s.step.Config.(domain.AssignConversationConfig); ok {
		cfg.NotifyEmail = email
		cfg.EmailSubject = subject
		s.step.Config = cfg
	}
	return s
}

// Kind declares a step of a kind the engine does not handle.
func (s *StepBuilder) Kind(kind string, raw map[string]any) *StepBuilder {
	return s.set(domain.UnhandledConfig{Kind: kind, Raw: raw})
}

// Go adds an unconditional connection to target.
func (s *StepBuilder) Go(target string) *StepBuilder {
	s.builder.connect(domain.Connection{From: s.step.ID, To: target})
	return s
}

// WhenTrue adds the connection followed when a condition holds.
func (s *StepBuilder) WhenTrue(target string) *StepBuilder {
	s.builder.connect(domain.Connection{From: s.step.ID, To: target, Label: domain.LabelTrue})
	return s
}

// WhenFalse adds the connection followed when a condition fails.
func (s *StepBuilder) WhenFalse(target string) *StepBuilder {
	s.builder.connect(domain.Connection{From: s.step.ID, To: target, Label: domain.LabelFalse})
	return s
}

// When adds the connection followed when option is chosen.
func (s *StepBuilder) When(option, target string) *StepBuilder {
	s.builder.connect(domain.Connection{From: s.step.ID, To: target, Option: option})
	return s
}

// Step returns the underlying domain.Step.
func (s *StepBuilder) Step() domain.Step {
	return s.step
}
