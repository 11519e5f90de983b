package runtime

import (
	"encoding/json"
	"reflect"
	"regexp"
	"sync"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// Evaluate decides whether cond holds for the current value and the answers
// committed so far. It is pure and never panics: operands of the wrong type make
// a leaf false, and unknown operators are false.
func Evaluate(cond domain.Condition, current any, answers map[string]any) bool {
	switch cond.Op {
	case domain.OpAnd:
		for _, c := range cond.Conditions {
			if !Evaluate(c, current, answers) {
				return false
			}
		}
		return true
	case domain.OpOr:
		for _, c := range cond.Conditions {
			if Evaluate(c, current, answers) {
				return true
			}
		}
		return false
	case domain.OpNot:
		if cond.Inner == nil {
			return true
		}
		return !Evaluate(*cond.Inner, current, answers)
	}

	value := current
	if cond.Answer != "" {
		// Unanswered steps read as nil.
		value = answers[cond.Answer]
	}
	return evaluateLeaf(cond.Op, cond.Value, value)
}

func evaluateLeaf(op domain.Op, operand, value any) bool {
	switch op {
	case domain.OpEquals:
		return equal(value, operand)
	case domain.OpNotEquals:
		return !equal(value, operand)
	case domain.OpIncludes:
		items, ok := asList(value)
		return ok && contains(items, operand)
	case domain.OpNotIncludes:
		// Non-list values are false here too, not vacuously true.
		items, ok := asList(value)
		return ok && !contains(items, operand)
	case domain.OpGT, domain.OpGTE, domain.OpLT, domain.OpLTE:
		return compare(op, value, operand)
	case domain.OpMatches:
		s, ok := value.(string)
		if !ok {
			return false
		}
		pattern, ok := operand.(string)
		if !ok {
			return false
		}
		re, err := compilePattern(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	case domain.OpIsEmpty:
		return isEmpty(value)
	case domain.OpIsNotEmpty:
		return !isEmpty(value)
	}
	return false
}

func compare(op domain.Op, value, operand any) bool {
	v, ok := toNumber(value)
	if !ok {
		return false
	}
	n, ok := toNumber(operand)
	if !ok {
		return false
	}
	switch op {
	case domain.OpGT:
		return v > n
	case domain.OpGTE:
		return v >= n
	case domain.OpLT:
		return v < n
	case domain.OpLTE:
		return v <= n
	}
	return false
}

// isEmpty is true for nil, the empty string and empty lists.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	if items, ok := asList(value); ok {
		return len(items) == 0
	}
	return false
}

// equal is a type-sensitive equality. Numbers compare by value regardless of
// their Go representation, since decoders disagree on int vs float64.
func equal(a, b any) bool {
	an, aNum := toNumber(a)
	bn, bNum := toNumber(b)
	if aNum || bNum {
		return aNum && bNum && an == bn
	}

	al, aList := asList(a)
	bl, bList := asList(b)
	if aList || bList {
		if !aList || !bList || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func contains(items []any, target any) bool {
	for _, item := range items {
		if equal(item, target) {
			return true
		}
	}
	return false
}

// asList reports whether v is a slice or array and returns its elements.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case nil, string, json.Number:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// Raw bytes are not a list of answers.
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toNumber converts any Go numeric value or json.Number to float64.
// Strings are never numbers, even when they look like one.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

var patternCache sync.Map // string -> *regexp.Regexp

// compilePattern compiles and caches a regular expression.
// Invalid patterns are not cached.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}
