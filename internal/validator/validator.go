// Package validator checks flow definitions before they are registered.
//
// ValidateFlow enforces the structural invariants every session relies on and
// stops at the first defect. The Strict option adds schema checks that are
// collected and reported together.
package validator

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/shortcode"
)

type config struct {
	strict     bool
	vocabulary *shortcode.Vocabulary
}

// Option configures validation.
type Option func(*config)

// Strict enables the schema checks on top of the structural ones.
// Shortcodes are checked against the default vocabulary unless WithVocabulary is given.
func Strict() Option {
	return func(c *config) {
		c.strict = true
	}
}

// WithVocabulary sets the shortcode vocabulary used by strict validation.
func WithVocabulary(v *shortcode.Vocabulary) Option {
	return func(c *config) {
		c.vocabulary = v
	}
}

// ValidateFlow returns a *domain.GraphError for the first structural defect of flow.
// With Strict, a structurally sound flow may still fail with a *Report.
func ValidateFlow(flow *domain.FlowDefinition, opts ...Option) error {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := checkStructure(flow); err != nil {
		return err
	}
	if !cfg.strict {
		return nil
	}

	vocab := cfg.vocabulary
	if vocab == nil {
		vocab = shortcode.Default()
	}
	if issues := checkSchema(flow, vocab); len(issues) > 0 {
		return &Report{FlowID: flow.ID, Issues: issues}
	}
	return nil
}

func checkStructure(flow *domain.FlowDefinition) error {
	graphErr := func(code domain.GraphErrorCode, stepID, target string) error {
		return &domain.GraphError{Code: code, FlowID: flow.ID, StepID: stepID, Target: target}
	}

	steps := make(map[string]bool, len(flow.Steps))
	for _, s := range flow.Steps {
		if steps[s.ID] {
			return graphErr(domain.CodeDuplicateStepID, s.ID, "")
		}
		steps[s.ID] = true
	}

	if !steps[flow.InitialStep] {
		return graphErr(domain.CodeMissingInitialStep, flow.InitialStep, "")
	}

	for _, s := range flow.Steps {
		if s.Next.Kind == domain.NextBranches {
			for i, b := range s.Next.Branches {
				if b.Default && i != len(s.Next.Branches)-1 {
					return graphErr(domain.CodeMisplacedDefault, s.ID, "")
				}
			}
		}
		for _, target := range s.Next.Targets() {
			if steps[target] {
				continue
			}
			if _, ok := flow.Outcomes[target]; ok {
				continue
			}
			return graphErr(domain.CodeDanglingTarget, s.ID, target)
		}
	}
	return nil
}

// Issue is one schema problem found by strict validation.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Report collects every issue found by strict validation.
type Report struct {
	FlowID string
	Issues []Issue
}

func (r *Report) Error() string {
	lines := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		lines[i] = is.String()
	}
	return fmt.Sprintf("flow %q: %d issue(s):\n- %s", r.FlowID, len(r.Issues), strings.Join(lines, "\n- "))
}

// Issue codes reported by strict validation.
const (
	CodeRequired        = "REQUIRED"
	CodeUnknownKind     = "UNKNOWN_KIND"
	CodeMissingOptions  = "MISSING_OPTIONS"
	CodeInvalidPattern  = "INVALID_PATTERN"
	CodeUnknownOp       = "UNKNOWN_OPERATOR"
	CodeEmptyCombinator = "EMPTY_COMBINATOR"
	CodeUnknownTag      = "UNKNOWN_SHORTCODE"
	CodeUnknownOutcome  = "UNKNOWN_OUTCOME_KIND"
	CodeOutcomePrefix   = "OUTCOME_PREFIX"
	CodeInvalidBounds   = "INVALID_BOUNDS"
)

func checkSchema(flow *domain.FlowDefinition, vocab *shortcode.Vocabulary) []Issue {
	var issues []Issue
	add := func(path, code, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if flow.ID == "" {
		add("id", CodeRequired, "flow id is required")
	}
	if flow.Version == "" {
		add("version", CodeRequired, "version is required")
	}

	for i, s := range flow.Steps {
		p := fmt.Sprintf("steps[%d]", i)
		if s.ID == "" {
			add(p+".id", CodeRequired, "step id is required")
		}
		if domain.IsOutcomeID(s.ID) {
			add(p+".id", CodeOutcomePrefix, "step id %q uses the reserved %q prefix", s.ID, domain.OutcomePrefix)
		}
		if !s.Kind.Valid() {
			add(p+".type", CodeUnknownKind, "unknown step type %q", s.Kind)
		}
		if s.Kind.HasOptions() && len(s.Options) == 0 {
			add(p+".options", CodeMissingOptions, "%s step %q needs options", s.Kind, s.ID)
		}
		if s.Shortcode != "" && !vocab.Valid(s.Shortcode) {
			add(p+".shortcode", CodeUnknownTag, "unknown shortcode %q", s.Shortcode)
		}
		if r := s.Validation; r != nil {
			if r.Pattern != "" {
				if _, err := regexp.Compile(r.Pattern); err != nil {
					add(p+".validation.pattern", CodeInvalidPattern, "invalid pattern %q: %v", r.Pattern, err)
				}
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				add(p+".validation", CodeInvalidBounds, "min %v is greater than max %v", *r.Min, *r.Max)
			}
			if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
				add(p+".validation", CodeInvalidBounds, "minLength %d is greater than maxLength %d", *r.MinLength, *r.MaxLength)
			}
		}
		for j, b := range s.Next.Branches {
			if b.When != nil {
				issues = append(issues, checkCondition(fmt.Sprintf("%s.next[%d].when", p, j), *b.When)...)
			} else if !b.Default {
				add(fmt.Sprintf("%s.next[%d]", p, j), CodeRequired, "branch needs a condition or default")
			}
		}
	}

	for _, id := range slices.Sorted(maps.Keys(flow.Outcomes)) {
		o := flow.Outcomes[id]
		p := fmt.Sprintf("outcomes[%q]", id)
		if !domain.IsOutcomeID(id) {
			add(p, CodeOutcomePrefix, "outcome id %q must start with %q", id, domain.OutcomePrefix)
		}
		if !o.Kind.Valid() {
			add(p+".type", CodeUnknownOutcome, "unknown outcome type %q", o.Kind)
		}
	}

	return issues
}

func checkCondition(path string, c domain.Condition) []Issue {
	var issues []Issue
	switch {
	case c.Op == domain.OpAnd || c.Op == domain.OpOr:
		if len(c.Conditions) == 0 {
			issues = append(issues, Issue{Path: path, Code: CodeEmptyCombinator,
				Message: fmt.Sprintf("%s without conditions", c.Op)})
		}
		for i, sub := range c.Conditions {
			issues = append(issues, checkCondition(fmt.Sprintf("%s.%s[%d]", path, c.Op, i), sub)...)
		}
	case c.Op == domain.OpNot:
		if c.Inner == nil {
			issues = append(issues, Issue{Path: path, Code: CodeEmptyCombinator, Message: "not without a condition"})
		} else {
			issues = append(issues, checkCondition(path+".not", *c.Inner)...)
		}
	case c.Op == domain.OpMatches:
		pattern, _ := c.Value.(string)
		if _, err := regexp.Compile(pattern); err != nil {
			issues = append(issues, Issue{Path: path, Code: CodeInvalidPattern,
				Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err)})
		}
	case !c.Op.IsLeaf():
		issues = append(issues, Issue{Path: path, Code: CodeUnknownOp, Message: fmt.Sprintf("unknown operator %q", c.Op)})
	}
	return issues
}
