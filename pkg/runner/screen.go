package runner

import (
	"fmt"
	"strings"

	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// Screen is the presentation of a session's current position.
// It is shared by every frontend: terminal, JSON lines, HTTP and MCP.
type Screen struct {
	SessionID   string              `json:"session_id,omitempty"`
	FlowID      string              `json:"flow_id"`
	FlowVersion string              `json:"flow_version"`
	StepID      string              `json:"step_id"`
	Kind        domain.StepKind     `json:"type,omitempty"`
	Question    string              `json:"question,omitempty"`
	Description string              `json:"description,omitempty"`
	Placeholder string              `json:"placeholder,omitempty"`
	Options     []domain.StepOption `json:"options,omitempty"`
	HelpText    *domain.HelpText    `json:"help_text,omitempty"`
	Answer      any                 `json:"answer,omitempty"`
	Error       string              `json:"validation_error,omitempty"`
	Progress    runtime.Progress    `json:"progress"`
	CanGoBack   bool                `json:"can_go_back"`
	Outcome     *domain.Outcome     `json:"outcome,omitempty"`
	Terminal    bool                `json:"terminal"`
}

// NewScreen captures the current position of s.
func NewScreen(s *runtime.Session) Screen {
	flow := s.Flow()
	screen := Screen{
		SessionID:   s.ID(),
		FlowID:      flow.ID,
		FlowVersion: flow.Version,
		StepID:      s.CurrentStepID(),
		Answer:      s.CurrentAnswer(),
		Error:       s.ValidationError(),
		Progress:    s.Progress(),
		CanGoBack:   s.CanGoBack(),
	}
	if s.IsOutcome() {
		screen.Outcome = s.Outcome()
		screen.Terminal = true
		return screen
	}
	if step := s.CurrentStep(); step != nil {
		screen.Kind = step.Kind
		screen.Question = step.Question
		screen.Description = step.Description
		screen.Placeholder = step.Placeholder
		screen.Options = step.Options
		screen.HelpText = step.HelpText
		screen.Terminal = step.Kind == domain.KindStop
	}
	return screen
}

// NeedsInput reports whether the screen asks for an answer.
func (sc Screen) NeedsInput() bool {
	return !sc.Terminal && sc.Kind != domain.KindInfo
}

// Markdown renders the screen for a terminal.
func (sc Screen) Markdown() string {
	var b strings.Builder
	if sc.Outcome != nil {
		fmt.Fprintf(&b, "## %s\n\n", outcomeTitle(sc.Outcome.Kind))
		if sc.Outcome.Message != "" {
			fmt.Fprintf(&b, "%s\n\n", sc.Outcome.Message)
		}
		if sc.Outcome.Reason != "" {
			fmt.Fprintf(&b, "_%s_\n", sc.Outcome.Reason)
		}
		return b.String()
	}

	if sc.Progress.Total > 0 {
		fmt.Fprintf(&b, "`%d%%`\n\n", sc.Progress.Percentage)
	}
	if sc.Question != "" {
		fmt.Fprintf(&b, "### %s\n\n", sc.Question)
	}
	if sc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", sc.Description)
	}
	for i, o := range sc.Options {
		fmt.Fprintf(&b, "%d. %s", i+1, o.Label)
		if o.Description != "" {
			fmt.Fprintf(&b, " (%s)", o.Description)
		}
		b.WriteString("\n")
	}
	if len(sc.Options) > 0 {
		b.WriteString("\n")
	}
	if hint := sc.hint(); hint != "" {
		fmt.Fprintf(&b, "_%s_\n", hint)
	}
	if sc.Error != "" {
		fmt.Fprintf(&b, "\n**%s**\n", sc.Error)
	}
	return b.String()
}

func (sc Screen) hint() string {
	switch sc.Kind {
	case domain.KindInfo:
		return "Press Enter to continue."
	case domain.KindStop:
		return ""
	case domain.KindCheckbox:
		return "Choose one or more, separated by commas."
	case domain.KindRadio, domain.KindDropdown:
		return "Choose one option by number or value."
	case domain.KindDate:
		return "Use the format YYYY-MM-DD."
	}
	if sc.Placeholder != "" {
		return sc.Placeholder
	}
	return ""
}

func outcomeTitle(kind domain.OutcomeKind) string {
	switch kind {
	case domain.OutcomeEligible:
		return "You're eligible"
	case domain.OutcomeIneligible:
		return "Not eligible"
	}
	return "Under review"
}
