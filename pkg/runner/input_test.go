package runner_test

import (
	"testing"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	options := []domain.StepOption{
		{Value: "female", Label: "Female"},
		{Value: "male", Label: "Male"},
		{Value: "other", Label: "Prefer to self-describe"},
	}

	tests := []struct {
		name    string
		kind    domain.StepKind
		raw     string
		want    any
		wantErr bool
	}{
		{"empty is nil", domain.KindText, "   ", nil, false},
		{"info ignores text", domain.KindInfo, "hello", nil, false},
		{"text trimmed", domain.KindText, "  lose weight ", "lose weight", false},
		{"number", domain.KindNumber, "42.5", 42.5, false},
		{"negative number", domain.KindNumber, "-3", -3.0, false},
		{"not a number", domain.KindNumber, "forty", nil, true},
		{"radio by value", domain.KindRadio, "male", "male", false},
		{"radio by index", domain.KindRadio, "1", "female", false},
		{"radio by label", domain.KindRadio, "prefer to self-describe", "other", false},
		{"radio out of range", domain.KindRadio, "4", nil, true},
		{"dropdown by index", domain.KindDropdown, "3", "other", false},
		{"checkbox mixed", domain.KindCheckbox, "1, other", []any{"female", "other"}, false},
		{"checkbox deduplicated", domain.KindCheckbox, "female,1", []any{"female"}, false},
		{"checkbox only commas", domain.KindCheckbox, ",,", []any{}, false},
		{"checkbox unknown", domain.KindCheckbox, "1,unknown", nil, true},
		{"date kept as text", domain.KindDate, "1990-01-31", "1990-01-31", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &domain.Step{ID: "q", Kind: tt.kind, Options: options}
			got, err := runner.ParseInput(step, tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, runner.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
