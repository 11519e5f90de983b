package runtime_test

import (
	"testing"

	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestValidateAnswer(t *testing.T) {
	required := &domain.ValidationRules{Required: true}
	bounds := &domain.ValidationRules{Min: ptr(18.0), Max: ptr(120.5)}
	lengths := &domain.ValidationRules{MinLength: ptr(2), MaxLength: ptr(4)}
	pattern := &domain.ValidationRules{Pattern: `^[A-Z]{2}$`}
	custom := &domain.ValidationRules{Required: true, CustomMessage: "Please tell us your age"}

	tests := []struct {
		name    string
		rules   *domain.ValidationRules
		value   any
		valid   bool
		message string
	}{
		{"no rules", nil, nil, true, ""},
		{"required nil", required, nil, false, "This field is required"},
		{"required empty string", required, "", false, "This field is required"},
		{"required empty list", required, []any{}, false, "Please select at least one option"},
		{"required empty typed list", required, []string{}, false, "Please select at least one option"},
		{"required zero is present", required, 0, true, ""},
		{"required present", required, "x", true, ""},
		{"optional empty", &domain.ValidationRules{}, "", true, ""},
		{"custom message", custom, nil, false, "Please tell us your age"},

		{"below min", bounds, 17, false, "Value must be at least 18"},
		{"at min", bounds, 18, true, ""},
		{"above max", bounds, 121.0, false, "Value must be at most 120.5"},
		{"bounds ignore strings", bounds, "5", true, ""},

		{"too short", lengths, "a", false, "Must be at least 2 characters"},
		{"too long", lengths, "abcde", false, "Must be at most 4 characters"},
		{"length counts runes", lengths, "ééé", true, ""},
		{"lengths ignore numbers", lengths, 1, true, ""},

		{"pattern match", pattern, "GB", true, ""},
		{"pattern miss", pattern, "gb", false, "Invalid format"},
		{"broken pattern is skipped", &domain.ValidationRules{Pattern: `([`}, "x", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &domain.Step{ID: "s", Kind: domain.KindText, Validation: tt.rules}
			res := runtime.ValidateAnswer(tt.value, step)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}
