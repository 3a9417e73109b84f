package dsl

import (
	"fmt"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/validator"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// Builder manages the flow construction.
// Steps and connections keep the order they were declared in.
type Builder struct {
	flow  domain.Flow
	steps []*StepBuilder
	index map[string]*StepBuilder
}

// New creates a new flow builder.
func New(id string) *Builder {
	return &Builder{
		flow:  domain.Flow{ID: id, Name: id},
		index: make(map[string]*StepBuilder),
	}
}

// Name sets the display name of the flow.
func (b *Builder) Name(name string) *Builder {
	b.flow.Name = name
	return b
}

// Key sets the unique lookup key of the flow.
func (b *Builder) Key(key string) *Builder {
	b.flow.Key = key
	return b
}

// Add creates a new step in the flow.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StepBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &StepBuilder{
		step:    domain.Step{ID: id},
		builder: b,
	}
	b.steps = append(b.steps, sb)
	b.index[id] = sb
	return sb
}

func (b *Builder) connect(c domain.Connection) {
	b.flow.Connections = append(b.flow.Connections, c)
}

// Flow assembles the flow without validating it.
func (b *Builder) Flow() *domain.Flow {
	f := b.flow
	f.Steps = make([]domain.Step, 0, len(b.steps))
	for _, sb := range b.steps {
		f.Steps = append(f.Steps, sb.step)
	}
	f.Connections = append([]domain.Connection(nil), b.flow.Connections...)
	return &f
}

// Build assembles and validates the flow.
func (b *Builder) Build() (*domain.Flow, error) {
	f := b.Flow()
	for _, s := range f.Steps {
		if s.Config == nil {
			return nil, fmt.Errorf("step %q has no kind", s.ID)
		}
	}
	if err := validator.ValidateFlow(f); err != nil {
		return nil, fmt.Errorf("invalid flow: %w", err)
	}
	return f, nil
}

// MustBuild is Build that panics on error. Intended for tests and examples.
func (b *Builder) MustBuild() *domain.Flow {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}
