package registry_test

import (
	"testing"

	"github.com/dylan-euc/client-side-quiz/internal/validator"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flow(id, version string) *domain.FlowDefinition {
	return &domain.FlowDefinition{
		ID:          id,
		Version:     version,
		InitialStep: "q",
		Steps: []domain.Step{
			{ID: "q", Kind: domain.KindText, Next: domain.Goto("outcome:done")},
		},
		Outcomes: map[string]domain.Outcome{"outcome:done": {Kind: domain.OutcomeEligible}},
	}
}

func TestRegistry_Versions(t *testing.T) {
	reg, err := registry.New([]*domain.FlowDefinition{
		flow("weight-loss", "1.0.0"),
		flow("weight-loss", "1.10.0"),
		flow("weight-loss", "1.2.0"),
		flow("skin", "1.0.0"),
	})
	require.NoError(t, err)

	current, ok := reg.GetFlow("weight-loss")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", current.Version)

	var versions []string
	for _, f := range reg.GetFlowVersions("weight-loss") {
		versions = append(versions, f.Version)
	}
	assert.Equal(t, []string{"1.10.0", "1.2.0", "1.0.0"}, versions)

	old, ok := reg.GetFlowByVersion("weight-loss", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", old.Version)

	_, ok = reg.GetFlowByVersion("weight-loss", "9.9.9")
	assert.False(t, ok)
	_, ok = reg.GetFlow("missing")
	assert.False(t, ok)
	assert.Empty(t, reg.GetFlowVersions("missing"))

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "skin", all[0].ID)
	assert.Equal(t, "weight-loss", all[1].ID)
	assert.True(t, reg.Exists("skin"))
	assert.False(t, reg.Exists("hair"))
}

func TestRegistry_NonSemverSortsLast(t *testing.T) {
	reg, err := registry.New([]*domain.FlowDefinition{
		flow("f", "draft"),
		flow("f", "0.1.0"),
	})
	require.NoError(t, err)

	current, _ := reg.GetFlow("f")
	assert.Equal(t, "0.1.0", current.Version)
}

func TestRegistry_RejectsInvalidFlow(t *testing.T) {
	bad := flow("f", "1.0.0")
	bad.InitialStep = "nope"

	_, err := registry.New([]*domain.FlowDefinition{bad})
	assert.ErrorIs(t, err, domain.ErrMissingInitialStep)
}

func TestRegistry_RejectsDuplicateVersion(t *testing.T) {
	_, err := registry.New([]*domain.FlowDefinition{flow("f", "1.0.0"), flow("f", "1.0.0")})
	assert.ErrorContains(t, err, "f@1.0.0 registered twice")
}

func TestRegistry_StrictValidation(t *testing.T) {
	f := flow("f", "1.0.0")
	f.Steps[0].Shortcode = "not_a_code"

	_, err := registry.New([]*domain.FlowDefinition{f})
	require.NoError(t, err)

	_, err = registry.New([]*domain.FlowDefinition{f}, registry.WithValidation(validator.Strict()))
	var report *validator.Report
	assert.ErrorAs(t, err, &report)
}

func TestRegistry_ReplaceKeepsPreviousOnError(t *testing.T) {
	reg, err := registry.New([]*domain.FlowDefinition{flow("a", "1.0.0")})
	require.NoError(t, err)

	bad := flow("b", "1.0.0")
	bad.Steps[0].Next = domain.Goto("ghost")
	require.ErrorIs(t, reg.Replace(bad), domain.ErrDanglingTarget)
	assert.True(t, reg.Exists("a"))

	require.NoError(t, reg.Replace(flow("b", "1.0.0")))
	assert.False(t, reg.Exists("a"))
	assert.True(t, reg.Exists("b"))
}
