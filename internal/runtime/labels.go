package runtime

import (
	"fmt"
	"strings"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// ConditionLabel renders a condition as a short human readable label,
// e.g. `< 18`, `sex = "female"` or `AND(3)`.
func ConditionLabel(cond domain.Condition) string {
	switch cond.Op {
	case domain.OpAnd, domain.OpOr:
		name := strings.ToUpper(string(cond.Op))
		if len(cond.Conditions) > 2 {
			return fmt.Sprintf("%s(%d)", name, len(cond.Conditions))
		}
		parts := make([]string, len(cond.Conditions))
		for i, c := range cond.Conditions {
			parts[i] = ConditionLabel(c)
		}
		return strings.Join(parts, " "+name+" ")
	case domain.OpNot:
		if cond.Inner == nil {
			return "NOT ?"
		}
		return "NOT " + ConditionLabel(*cond.Inner)
	}

	label := leafLabel(cond.Op, cond.Value)
	if cond.Answer != "" {
		return cond.Answer + " " + label
	}
	return label
}

func leafLabel(op domain.Op, v any) string {
	switch op {
	case domain.OpEquals:
		return "= " + operandLabel(v)
	case domain.OpNotEquals:
		return "≠ " + operandLabel(v)
	case domain.OpIncludes:
		return fmt.Sprintf("includes %q", fmt.Sprint(v))
	case domain.OpNotIncludes:
		return fmt.Sprintf("excludes %q", fmt.Sprint(v))
	case domain.OpGT:
		return fmt.Sprintf("> %v", v)
	case domain.OpGTE:
		return fmt.Sprintf("≥ %v", v)
	case domain.OpLT:
		return fmt.Sprintf("< %v", v)
	case domain.OpLTE:
		return fmt.Sprintf("≤ %v", v)
	case domain.OpMatches:
		return fmt.Sprintf("matches /%v/", v)
	case domain.OpIsEmpty:
		return "is empty"
	case domain.OpIsNotEmpty:
		return "is not empty"
	}
	return "?"
}

func operandLabel(v any) string {
	if s, ok := v.(string); ok {
		return `"` + s + `"`
	}
	return fmt.Sprint(v)
}

// BranchLabel is the condition label of a branch, or "default".
func BranchLabel(b domain.Branch) string {
	if b.Default || b.When == nil {
		return "default"
	}
	return ConditionLabel(*b.When)
}
