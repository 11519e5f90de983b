package runtime

import (
	"fmt"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ResolveNext turns a step's next specification into a single target id.
//
// A literal is returned verbatim, including the empty string. Branches are tried
// in declared order and the first one that matches wins; a default branch always
// matches. Running out of branches is a *domain.ResolutionError.
func ResolveNext(next domain.Next, current any, answers map[string]any) (string, error) {
	switch next.Kind {
	case domain.NextLiteral:
		return next.Target, nil
	case domain.NextBranches:
		for _, b := range next.Branches {
			if b.Default {
				return b.Target, nil
			}
			if b.When != nil && Evaluate(*b.When, current, answers) {
				return b.Target, nil
			}
		}
		return "", &domain.ResolutionError{Err: domain.ErrNoMatchingBranch}
	}
	return "", &domain.ResolutionError{Err: fmt.Errorf("unknown next kind %d", next.Kind)}
}
