package domain

// StepKind defines how a step is rendered and whether it collects input.
type StepKind string

const (
	// KindText is a free text input.
	KindText StepKind = "text"
	// KindNumber is a numeric input.
	KindNumber StepKind = "number"
	// KindRadio is a single select from Options.
	KindRadio StepKind = "radio"
	// KindCheckbox is a multi select from Options. Its answer is a list.
	KindCheckbox StepKind = "checkbox"
	// KindDate is a date picker. Answers are ISO dates (YYYY-MM-DD).
	KindDate StepKind = "date"
	// KindEmail is an email input.
	KindEmail StepKind = "email"
	// KindDropdown is a single select for long option lists.
	KindDropdown StepKind = "dropdown"
	// KindInfo is an informational screen. It collects no input.
	KindInfo StepKind = "info"
	// KindStop is a terminal screen; the flow cannot continue past it.
	KindStop StepKind = "stop"
)

// KindMeta describes a step kind for listings and authoring tools.
type KindMeta struct {
	Kind        StepKind `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

var kindMeta = []KindMeta{
	{KindRadio, "Radio", "Single select from a list of options"},
	{KindCheckbox, "Checkbox", "Multi-select from a list of options"},
	{KindText, "Text", "Free-form text input"},
	{KindNumber, "Number", "Numeric input with validation"},
	{KindDate, "Date", "Date picker input"},
	{KindEmail, "Email", "Email input with validation"},
	{KindDropdown, "Dropdown", "Select dropdown for long option lists"},
	{KindInfo, "Info", "Informational screen (no input)"},
	{KindStop, "Stop", "Terminal screen - quiz cannot continue"},
}

// StepKinds returns the metadata of every known step kind.
func StepKinds() []KindMeta {
	out := make([]KindMeta, len(kindMeta))
	copy(out, kindMeta)
	return out
}

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	for _, m := range kindMeta {
		if m.Kind == k {
			return true
		}
	}
	return false
}

// IsInput reports whether a step of this kind collects an answer.
func (k StepKind) IsInput() bool {
	return k != KindInfo && k != KindStop
}

// HasOptions reports whether the kind selects from a list of options.
func (k StepKind) HasOptions() bool {
	return k == KindRadio || k == KindCheckbox || k == KindDropdown
}

// StepOption is one selectable value of a radio, checkbox or dropdown step.
type StepOption struct {
	Value       string `json:"value" yaml:"value" mapstructure:"value"`
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// HelpText is the "Why are we asking this?" popup attached to a step.
type HelpText struct {
	Title    string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Content  string `json:"content" yaml:"content" mapstructure:"content"`
	LinkText string `json:"linkText,omitempty" yaml:"linkText,omitempty" mapstructure:"linkText"`
}

// ValidationRules constrain the answer of a step.
// Nil pointers mean the bound is not set.
type ValidationRules struct {
	Required      bool     `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
	MinLength     *int     `json:"minLength,omitempty" yaml:"minLength,omitempty" mapstructure:"minLength"`
	MaxLength     *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty" mapstructure:"maxLength"`
	Pattern       string   `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	CustomMessage string   `json:"customMessage,omitempty" yaml:"customMessage,omitempty" mapstructure:"customMessage"`
}

// Step represents one question or screen of a flow.
type Step struct {
	ID   string
	Kind StepKind

	// Presentation payload. Opaque to the engine.
	Question    string
	Description string
	Placeholder string
	HelpText    *HelpText

	// Options for radio, checkbox and dropdown kinds.
	Options []StepOption

	// Validation is nil when any answer is accepted.
	Validation *ValidationRules

	// Shortcode tags the answer for downstream systems.
	Shortcode string

	Next Next
}

// Option returns the option with the given value.
func (s *Step) Option(value string) (StepOption, bool) {
	for _, o := range s.Options {
		if o.Value == value {
			return o, true
		}
	}
	return StepOption{}, false
}
