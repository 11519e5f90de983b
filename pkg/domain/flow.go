package domain

import "strings"

// OutcomePrefix distinguishes outcome ids from step ids in the shared "next" space.
const OutcomePrefix = "outcome:"

// IsOutcomeID reports whether id addresses an outcome rather than a step.
func IsOutcomeID(id string) bool {
	return strings.HasPrefix(id, OutcomePrefix)
}

// OutcomeKind classifies how a session ended.
type OutcomeKind string

const (
	OutcomeEligible    OutcomeKind = "eligible"
	OutcomeIneligible  OutcomeKind = "ineligible"
	OutcomeNeedsReview OutcomeKind = "needs-review"
)

// Valid reports whether k is a known outcome kind.
func (k OutcomeKind) Valid() bool {
	return k == OutcomeEligible || k == OutcomeIneligible || k == OutcomeNeedsReview
}

// Outcome is a terminal node of a flow.
type Outcome struct {
	Kind    OutcomeKind `json:"type" yaml:"type" mapstructure:"type"`
	Reason  string      `json:"reason,omitempty" yaml:"reason,omitempty" mapstructure:"reason"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`
}

// FlowDefinition is a versioned questionnaire graph.
// Once validated it is treated as immutable.
type FlowDefinition struct {
	ID          string
	Name        string
	Version     string
	Description string

	Steps    []Step
	Outcomes map[string]Outcome

	InitialStep string
}

// Step returns the step with the given id, or nil.
func (f *FlowDefinition) Step(id string) *Step {
	for i := range f.Steps {
		if f.Steps[i].ID == id {
			return &f.Steps[i]
		}
	}
	return nil
}

// HasStep reports whether a step with the given id exists.
func (f *FlowDefinition) HasStep(id string) bool {
	return f.Step(id) != nil
}

// Outcome returns the outcome with the given id.
func (f *FlowDefinition) Outcome(id string) (Outcome, bool) {
	o, ok := f.Outcomes[id]
	return o, ok
}

// InputStepCount counts the steps that are not informational.
// Stop steps are counted, matching how progress has always been reported.
func (f *FlowDefinition) InputStepCount() int {
	n := 0
	for _, s := range f.Steps {
		if s.Kind != KindInfo {
			n++
		}
	}
	return n
}

// Key identifies a flow version ("id@version").
func (f *FlowDefinition) Key() string {
	return f.ID + "@" + f.Version
}
