package runtime

import (
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ReplayHistory rebuilds the navigation history that leads to target by walking
// the flow from its initial step with the committed answers. Info steps are
// passed with a nil value.
//
// It returns nil when target cannot be reached that way: an input step without
// an answer, a resolution failure, an empty next, or a cycle.
func ReplayHistory(flow *domain.FlowDefinition, answers map[string]any, target string) []string {
	current := flow.InitialStep
	history := []string{current}
	seen := map[string]bool{current: true}

	for current != target {
		step := flow.Step(current)
		if step == nil || step.Kind == domain.KindStop {
			return nil
		}

		var value any
		if step.Kind != domain.KindInfo {
			v, ok := answers[step.ID]
			if !ok {
				return nil
			}
			value = v
		}

		next, err := ResolveNext(step.Next, value, answers)
		if err != nil || next == "" || seen[next] {
			return nil
		}
		seen[next] = true
		history = append(history, next)
		current = next
	}
	return history
}
