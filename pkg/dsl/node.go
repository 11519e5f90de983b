package dsl

import (
	"errors"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step     domain.Step
	branches []domain.Branch
	target   string
	err      error
}

// Question sets the prompt shown for the step.
func (s *StepBuilder) Question(text string) *StepBuilder {
	s.step.Question = text
	return s
}

// Describe sets the secondary text under the question.
func (s *StepBuilder) Describe(text string) *StepBuilder {
	s.step.Description = text
	return s
}

// Placeholder sets the input hint.
func (s *StepBuilder) Placeholder(text string) *StepBuilder {
	s.step.Placeholder = text
	return s
}

// Help attaches the "Why are we asking this?" popup.
func (s *StepBuilder) Help(title, content string) *StepBuilder {
	s.step.HelpText = &domain.HelpText{Title: title, Content: content}
	return s
}

// Shortcode tags the answer for downstream systems.
func (s *StepBuilder) Shortcode(code string) *StepBuilder {
	s.step.Shortcode = code
	return s
}

// Option adds a selectable value.
func (s *StepBuilder) Option(value, label string) *StepBuilder {
	s.step.Options = append(s.step.Options, domain.StepOption{Value: value, Label: label})
	return s
}

func (s *StepBuilder) rules() *domain.ValidationRules {
	if s.step.Validation == nil {
		s.step.Validation = &domain.ValidationRules{}
	}
	return s.step.Validation
}

// Required rejects empty answers.
func (s *StepBuilder) Required() *StepBuilder {
	s.rules().Required = true
	return s
}

// Range bounds numeric answers, both ends inclusive.
func (s *StepBuilder) Range(lo, hi float64) *StepBuilder {
	r := s.rules()
	r.Min, r.Max = &lo, &hi
	return s
}

// Length bounds the length of text answers. A zero max leaves it unbounded.
func (s *StepBuilder) Length(lo, hi int) *StepBuilder {
	r := s.rules()
	r.MinLength = &lo
	if hi > 0 {
		r.MaxLength = &hi
	}
	return s
}

// Pattern requires text answers to match a regular expression.
func (s *StepBuilder) Pattern(expr string) *StepBuilder {
	s.rules().Pattern = expr
	return s
}

// Message overrides the validation message.
func (s *StepBuilder) Message(text string) *StepBuilder {
	s.rules().CustomMessage = text
	return s
}

var errMixedNext = errors.New("a step goes to a single target or branches, not both")

// Go sets an unconditional next target.
func (s *StepBuilder) Go(target string) *StepBuilder {
	if len(s.branches) > 0 {
		s.err = errMixedNext
	}
	s.target = target
	return s
}

// When adds a conditional branch. Branches are evaluated in the order added.
func (s *StepBuilder) When(cond domain.Condition, target string) *StepBuilder {
	if s.target != "" {
		s.err = errMixedNext
	}
	s.branches = append(s.branches, domain.When(cond, target))
	return s
}

// Otherwise adds the default branch. It must come last.
func (s *StepBuilder) Otherwise(target string) *StepBuilder {
	if s.target != "" {
		s.err = errMixedNext
	}
	s.branches = append(s.branches, domain.Otherwise(target))
	return s
}

// build returns the underlying domain.Step.
func (s *StepBuilder) build() domain.Step {
	step := s.step
	switch {
	case len(s.branches) > 0:
		step.Next = domain.Branches(s.branches...)
	case s.target != "":
		step.Next = domain.Goto(s.target)
	default:
		step.Next = domain.End()
	}
	return step
}
