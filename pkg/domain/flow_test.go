package domain_test

import (
	"errors"
	"testing"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestNext_Targets(t *testing.T) {
	tests := []struct {
		name string
		next domain.Next
		want []string
	}{
		{"literal", domain.Goto("sex"), []string{"sex"}},
		{"empty literal", domain.End(), nil},
		{
			"branches",
			domain.Branches(
				domain.When(domain.LT(18), "outcome:ineligible-age"),
				domain.When(domain.Equals("x"), ""),
				domain.Otherwise("sex"),
			),
			[]string{"outcome:ineligible-age", "sex"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.next.Targets())
		})
	}
}

func TestFlowDefinition_Lookups(t *testing.T) {
	flow := &domain.FlowDefinition{
		ID:      "f",
		Version: "1.0.0",
		Steps: []domain.Step{
			{ID: "welcome", Kind: domain.KindInfo, Next: domain.Goto("age")},
			{ID: "age", Kind: domain.KindNumber, Next: domain.Goto("outcome:ok")},
			{ID: "stop", Kind: domain.KindStop, Next: domain.End()},
		},
		Outcomes:    map[string]domain.Outcome{"outcome:ok": {Kind: domain.OutcomeEligible}},
		InitialStep: "welcome",
	}

	assert.True(t, flow.HasStep("age"))
	assert.False(t, flow.HasStep("outcome:ok"))
	assert.Nil(t, flow.Step("missing"))
	assert.Equal(t, 2, flow.InputStepCount())
	assert.Equal(t, "f@1.0.0", flow.Key())

	o, ok := flow.Outcome("outcome:ok")
	assert.True(t, ok)
	assert.Equal(t, domain.OutcomeEligible, o.Kind)

	assert.True(t, domain.IsOutcomeID("outcome:ok"))
	assert.False(t, domain.IsOutcomeID("age"))
}

func TestGraphError_Unwrap(t *testing.T) {
	err := error(&domain.GraphError{Code: domain.CodeDanglingTarget, FlowID: "f", StepID: "a", Target: "b"})

	assert.True(t, errors.Is(err, domain.ErrDanglingTarget))
	assert.False(t, errors.Is(err, domain.ErrDuplicateStepID))
	assert.Contains(t, err.Error(), `"b"`)

	var gerr *domain.GraphError
	assert.True(t, errors.As(err, &gerr))
	assert.Equal(t, "a", gerr.StepID)
}

func TestResolutionError_Unwrap(t *testing.T) {
	err := error(&domain.ResolutionError{StepID: "a", Err: domain.ErrNoMatchingBranch})
	assert.ErrorIs(t, err, domain.ErrNoMatchingBranch)
	assert.Contains(t, err.Error(), "no matching branch")
}

func TestAnswerMap(t *testing.T) {
	records := []domain.AnswerRecord{
		{StepID: "age", Value: 17.0},
		{StepID: "sex", Value: "female"},
		{StepID: "age", Value: 25.0},
	}
	assert.Equal(t, map[string]any{"age": 25.0, "sex": "female"}, domain.AnswerMap(records))
}
