package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ErrInvalidInput reports a line that cannot be turned into an answer for the
// current step. The user is asked again.
var ErrInvalidInput = errors.New("invalid input")

// ParseInput converts a raw line into the answer value for step.
//
//   - number: a float64
//   - checkbox: a []any of option values, given as a comma separated list of
//     values or 1-based option numbers
//   - radio, dropdown: an option value, given as the value or its 1-based number
//   - info: nil
//   - anything else: the trimmed text
//
// An empty line is nil for every kind, so required checks still apply.
func ParseInput(step *domain.Step, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if step == nil || step.Kind == domain.KindInfo || raw == "" {
		return nil, nil
	}

	switch step.Kind {
	case domain.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, raw)
		}
		return n, nil
	case domain.KindRadio, domain.KindDropdown:
		return pickOption(step, raw)
	case domain.KindCheckbox:
		var values []any
		seen := make(map[string]bool)
		for part := range strings.SplitSeq(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := pickOption(step, part)
			if err != nil {
				return nil, err
			}
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		if values == nil {
			values = []any{}
		}
		return values, nil
	}
	return raw, nil
}

func pickOption(step *domain.Step, raw string) (string, error) {
	if _, ok := step.Option(raw); ok {
		return raw, nil
	}
	if i, err := strconv.Atoi(raw); err == nil && i >= 1 && i <= len(step.Options) {
		return step.Options[i-1].Value, nil
	}
	for _, o := range step.Options {
		if strings.EqualFold(o.Label, raw) || strings.EqualFold(o.Value, raw) {
			return o.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of the options", ErrInvalidInput, raw)
}
