package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dylan-euc/client-side-quiz/internal/validator"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
)

// FlowResult is the validation outcome of one flow version.
type FlowResult struct {
	Key string
	Err error
}

// ValidateDir parses every flow under dir and validates each one on its own,
// so one broken flow does not hide the others. A parse failure is returned as
// the error since it prevents reading the rest.
func ValidateDir(ctx context.Context, dir string, strict bool) ([]FlowResult, error) {
	flows, err := file.NewLoader(dir).LoadFlows(ctx)
	if err != nil {
		return nil, err
	}

	var opts []validator.Option
	if strict {
		opts = append(opts, validator.Strict())
	}

	seen := make(map[string]bool, len(flows))
	results := make([]FlowResult, 0, len(flows))
	for _, f := range flows {
		res := FlowResult{Key: f.Key()}
		switch {
		case seen[f.Key()]:
			res.Err = fmt.Errorf("flow %s registered twice", f.Key())
		default:
			res.Err = validator.ValidateFlow(f, opts...)
		}
		seen[f.Key()] = true
		results = append(results, res)
	}
	return results, nil
}

// PrintResults writes one line per flow and reports whether all passed.
func PrintResults(w io.Writer, results []FlowResult) bool {
	ok := true
	for _, r := range results {
		if r.Err != nil {
			ok = false
			fmt.Fprintf(w, "FAIL %s: %v\n", r.Key, r.Err)
			continue
		}
		fmt.Fprintf(w, "ok   %s\n", r.Key)
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "no flows found\n")
		return false
	}
	return ok
}
