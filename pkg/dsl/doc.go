/*
Package dsl provides a fluent Go builder for questionnaire flows.

It is an alternative to YAML or JSON definitions when flows are generated in
code or assembled in tests. Build validates the result with the same rules the
file loaders apply.

Example usage:

	b := dsl.New("screening", "1.0.0").Name("Screening")

	b.Info("welcome").
		Question("Welcome").
		Go("age")

	b.Number("age").
		Question("How old are you?").
		Shortcode("patient_age").
		Required().
		Range(1, 120).
		When(domain.LT(18), "outcome:too-young").
		Otherwise("outcome:eligible")

	b.Outcome("outcome:too-young", domain.OutcomeIneligible, "Under 18")
	b.Outcome("outcome:eligible", domain.OutcomeEligible, "Welcome aboard")

	flow, err := b.Build()
*/
package dsl
