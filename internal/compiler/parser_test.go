package compiler_test

import (
	"testing"

	"github.com/dylan-euc/client-side-quiz/internal/compiler"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weightLossYAML = `
id: weight-loss
name: Weight Loss
version: 1.2.0
initialStep: age
steps:
  - id: age
    type: number
    question: How old are you?
    shortcode: patient_age
    validation:
      required: true
      min: 0
      max: 120
    next:
      - when: { lt: 18 }
        then: outcome:ineligible-age
      - default: sex
  - id: sex
    type: radio
    question: What is your sex?
    helpText:
      title: Why are we asking this?
      content: Some medication is not suitable during pregnancy.
    options:
      - { value: female, label: Female }
      - { value: male, label: Male }
    next: conditions
  - id: conditions
    type: checkbox
    question: Do you have any of these conditions?
    options:
      - { value: diabetes_type1, label: Type 1 diabetes }
      - { value: pancreatitis, label: Pancreatitis }
      - { value: none, label: None }
    validation:
      required: true
      customMessage: Please pick at least one
    next:
      - when: { includes: diabetes_type1 }
        then: stop-t1d
      - when:
          and:
            - { answer: sex, equals: female }
            - { not: { includes: none } }
        then: outcome:needs-review
      - default: outcome:eligible
  - id: stop-t1d
    type: stop
    question: We cannot continue
    next: ""
outcomes:
  outcome:eligible: { type: eligible }
  outcome:needs-review: { type: needs-review, reason: Clinician review }
  outcome:ineligible-age: { type: ineligible, message: You must be 18 or over }
`

func TestParse_YAML(t *testing.T) {
	flow, err := compiler.NewParser().Parse([]byte(weightLossYAML))
	require.NoError(t, err)

	assert.Equal(t, "weight-loss", flow.ID)
	assert.Equal(t, "1.2.0", flow.Version)
	assert.Equal(t, "age", flow.InitialStep)
	require.Len(t, flow.Steps, 4)

	age := flow.Step("age")
	require.NotNil(t, age)
	assert.Equal(t, domain.KindNumber, age.Kind)
	require.NotNil(t, age.Validation)
	assert.True(t, age.Validation.Required)
	assert.Equal(t, 120.0, *age.Validation.Max)
	assert.Equal(t, domain.Branches(
		domain.When(domain.LT(18), "outcome:ineligible-age"),
		domain.Otherwise("sex"),
	), age.Next)

	sex := flow.Step("sex")
	assert.Equal(t, domain.Goto("conditions"), sex.Next)
	require.NotNil(t, sex.HelpText)
	assert.Equal(t, "Why are we asking this?", sex.HelpText.Title)
	assert.Len(t, sex.Options, 2)

	conditions := flow.Step("conditions")
	require.Len(t, conditions.Next.Branches, 3)
	assert.Equal(t,
		domain.And(domain.Equals("female").On("sex"), domain.Not(domain.Includes("none"))),
		*conditions.Next.Branches[1].When,
	)
	assert.Equal(t, "Please pick at least one", conditions.Validation.CustomMessage)

	assert.Equal(t, domain.End(), flow.Step("stop-t1d").Next)
	assert.Equal(t, domain.OutcomeNeedsReview, flow.Outcomes["outcome:needs-review"].Kind)
	assert.Equal(t, "You must be 18 or over", flow.Outcomes["outcome:ineligible-age"].Message)
}

func TestParse_JSON(t *testing.T) {
	doc := `{
		"id": "skin",
		"name": "Skin",
		"version": "1.0.0",
		"initialStep": "concern",
		"steps": [
			{
				"id": "concern",
				"type": "text",
				"question": "What worries you?",
				"validation": {"minLength": 3, "pattern": "^[a-z ]+$"},
				"next": [{"when": {"matches": "acne"}, "then": "outcome:acne"}, {"default": "outcome:other"}]
			}
		],
		"outcomes": {"outcome:acne": {"type": "eligible"}, "outcome:other": {"type": "needs-review"}}
	}`

	flow, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	step := flow.Step("concern")
	require.NotNil(t, step)
	assert.Equal(t, 3, *step.Validation.MinLength)
	assert.Equal(t, domain.Matches("acne"), *step.Next.Branches[0].When)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty flow document"},
		{"missing id", `steps: []`, "missing id"},
		{"unknown field", "id: f\nsteps: []\ncolour: red", "colour"},
		{"unknown operator", "id: f\nsteps:\n  - id: a\n    next:\n      - when: { between: 3 }\n        then: b", "unknown operator"},
		{"two operators", "id: f\nsteps:\n  - id: a\n    next:\n      - when: { lt: 3, gt: 1 }\n        then: b", "conflicting operators"},
		{"numeric operand", "id: f\nsteps:\n  - id: a\n    next:\n      - when: { lt: old }\n        then: b", "expects a number"},
		{"answer on combinator", "id: f\nsteps:\n  - id: a\n    next:\n      - when: { answer: x, or: [] }\n        then: b", "answer cannot be combined"},
		{"default with then", "id: f\nsteps:\n  - id: a\n    next:\n      - default: b\n        then: c", "default branch"},
		{"bad next", "id: f\nsteps:\n  - id: a\n    next: 3", "next must be"},
		{"syntax", "id: [", "failed to parse flow yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	original, err := compiler.NewParser().Parse([]byte(weightLossYAML))
	require.NoError(t, err)

	for _, format := range []compiler.Format{compiler.FormatYAML, compiler.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			data, err := compiler.Encode(original, format)
			require.NoError(t, err)

			again, err := compiler.NewParser().ParseFormat(data, format)
			require.NoError(t, err)
			assert.Equal(t, original, again)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, compiler.FormatJSON, compiler.FormatFromPath("flows/skin.JSON"))
	assert.Equal(t, compiler.FormatYAML, compiler.FormatFromPath("flows/skin.yaml"))
	assert.Equal(t, compiler.FormatYAML, compiler.FormatFromPath("flows/skin.yml"))
}
