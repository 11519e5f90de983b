package runtime

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ValidationResult is the outcome of checking one answer against its step's rules.
// An invalid result is meant for the end user; it is never returned as an error.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func valid() ValidationResult { return ValidationResult{Valid: true} }

func invalid(rules *domain.ValidationRules, fallback string) ValidationResult {
	msg := fallback
	if rules.CustomMessage != "" {
		msg = rules.CustomMessage
	}
	return ValidationResult{Message: msg}
}

// ValidateAnswer checks value against step.Validation.
// A step without rules accepts anything.
func ValidateAnswer(value any, step *domain.Step) ValidationResult {
	if step == nil || step.Validation == nil {
		return valid()
	}
	rules := step.Validation

	if rules.Required {
		if value == nil || value == "" {
			return invalid(rules, "This field is required")
		}
		if items, ok := asList(value); ok && len(items) == 0 {
			return invalid(rules, "Please select at least one option")
		}
	}

	if n, ok := toNumber(value); ok {
		if rules.Min != nil && n < *rules.Min {
			return invalid(rules, fmt.Sprintf("Value must be at least %s", formatNumber(*rules.Min)))
		}
		if rules.Max != nil && n > *rules.Max {
			return invalid(rules, fmt.Sprintf("Value must be at most %s", formatNumber(*rules.Max)))
		}
	}

	if s, ok := value.(string); ok {
		length := utf8.RuneCountInString(s)
		if rules.MinLength != nil && length < *rules.MinLength {
			return invalid(rules, fmt.Sprintf("Must be at least %d characters", *rules.MinLength))
		}
		if rules.MaxLength != nil && length > *rules.MaxLength {
			return invalid(rules, fmt.Sprintf("Must be at most %d characters", *rules.MaxLength))
		}
		if rules.Pattern != "" {
			// A broken pattern is reported by strict flow validation, not here.
			if re, err := compilePattern(rules.Pattern); err == nil && !re.MatchString(s) {
				return invalid(rules, "Invalid format")
			}
		}
	}

	return valid()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
