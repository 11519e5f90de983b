package dsl

import (
	"errors"
	"fmt"

	"github.com/dylan-euc/client-side-quiz/internal/validator"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/memory"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ErrOutcomePrefix is returned for outcomes declared without the outcome prefix.
var ErrOutcomePrefix = errors.New(`outcome ids must start with "outcome:"`)

// Builder manages the flow construction.
// Steps keep the order in which they were first added.
type Builder struct {
	flow  domain.FlowDefinition
	steps []*StepBuilder
	index map[string]*StepBuilder
}

// New creates a new flow builder. The first step added becomes the initial
// step unless Initial is called.
func New(id, version string) *Builder {
	return &Builder{
		flow: domain.FlowDefinition{
			ID:       id,
			Version:  version,
			Outcomes: make(map[string]domain.Outcome),
		},
		index: make(map[string]*StepBuilder),
	}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.flow.Name = name
	return b
}

// Describe sets the flow description.
func (b *Builder) Describe(text string) *Builder {
	b.flow.Description = text
	return b
}

// Initial sets the initial step.
func (b *Builder) Initial(stepID string) *Builder {
	b.flow.InitialStep = stepID
	return b
}

// Step adds a step of the given kind.
// If the step already exists, it returns the existing builder.
func (b *Builder) Step(id string, kind domain.StepKind) *StepBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &StepBuilder{step: domain.Step{ID: id, Kind: kind}}
	b.index[id] = sb
	b.steps = append(b.steps, sb)
	if b.flow.InitialStep == "" {
		b.flow.InitialStep = id
	}
	return sb
}

func (b *Builder) Info(id string) *StepBuilder     { return b.Step(id, domain.KindInfo) }
func (b *Builder) Stop(id string) *StepBuilder     { return b.Step(id, domain.KindStop) }
func (b *Builder) Text(id string) *StepBuilder     { return b.Step(id, domain.KindText) }
func (b *Builder) Number(id string) *StepBuilder   { return b.Step(id, domain.KindNumber) }
func (b *Builder) Email(id string) *StepBuilder    { return b.Step(id, domain.KindEmail) }
func (b *Builder) Date(id string) *StepBuilder     { return b.Step(id, domain.KindDate) }
func (b *Builder) Radio(id string) *StepBuilder    { return b.Step(id, domain.KindRadio) }
func (b *Builder) Checkbox(id string) *StepBuilder { return b.Step(id, domain.KindCheckbox) }
func (b *Builder) Dropdown(id string) *StepBuilder { return b.Step(id, domain.KindDropdown) }

// Outcome declares a terminal result. id must carry the outcome prefix.
func (b *Builder) Outcome(id string, kind domain.OutcomeKind, message string) *Builder {
	b.flow.Outcomes[id] = domain.Outcome{Kind: kind, Message: message}
	return b
}

// OutcomeWithReason declares a terminal result with a machine readable reason.
func (b *Builder) OutcomeWithReason(id string, kind domain.OutcomeKind, reason, message string) *Builder {
	b.flow.Outcomes[id] = domain.Outcome{Kind: kind, Reason: reason, Message: message}
	return b
}

// Build assembles and validates the flow.
func (b *Builder) Build() (*domain.FlowDefinition, error) {
	flow := b.flow
	flow.Steps = make([]domain.Step, 0, len(b.steps))
	for _, sb := range b.steps {
		if sb.err != nil {
			return nil, fmt.Errorf("step %q: %w", sb.step.ID, sb.err)
		}
		flow.Steps = append(flow.Steps, sb.build())
	}
	outcomes := make(map[string]domain.Outcome, len(flow.Outcomes))
	for k, v := range flow.Outcomes {
		if !domain.IsOutcomeID(k) {
			return nil, fmt.Errorf("outcome %q: %w", k, ErrOutcomePrefix)
		}
		outcomes[k] = v
	}
	flow.Outcomes = outcomes

	if err := validator.ValidateFlow(&flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// MustBuild is like Build but panics on error. Intended for tests and package
// level flow variables.
func (b *Builder) MustBuild() *domain.FlowDefinition {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}

// Loader builds the flow and wraps it in a memory loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	flow, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return memory.NewLoader(flow), nil
}
