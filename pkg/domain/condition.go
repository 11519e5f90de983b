package domain

// Op is the discriminant of a Condition.
type Op string

// Leaf operators compare a single value against an operand.
const (
	OpEquals      Op = "equals"
	OpNotEquals   Op = "notEquals"
	OpIncludes    Op = "includes"
	OpNotIncludes Op = "notIncludes"
	OpGT          Op = "gt"
	OpGTE         Op = "gte"
	OpLT          Op = "lt"
	OpLTE         Op = "lte"
	OpMatches     Op = "matches"
	OpIsEmpty     Op = "isEmpty"
	OpIsNotEmpty  Op = "isNotEmpty"
)

// Combinators compose other conditions.
const (
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpNot Op = "not"
)

// LeafOps lists the leaf operators in their canonical order.
var LeafOps = []Op{
	OpEquals, OpNotEquals, OpIncludes, OpNotIncludes,
	OpGT, OpGTE, OpLT, OpLTE, OpMatches, OpIsEmpty, OpIsNotEmpty,
}

// IsLeaf reports whether op evaluates a value rather than other conditions.
func (op Op) IsLeaf() bool {
	for _, l := range LeafOps {
		if l == op {
			return true
		}
	}
	return false
}

// IsNumeric reports whether op is one of the ordered numeric comparisons.
func (op Op) IsNumeric() bool {
	return op == OpGT || op == OpGTE || op == OpLT || op == OpLTE
}

// IsCombinator reports whether op is and, or or not.
func (op Op) IsCombinator() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// Condition is a boolean expression evaluated when choosing a branch.
//
// Leaf conditions carry their operand in Value and are evaluated against the
// current answer, or against the answer of step Answer when it is set.
// And/Or hold their members in Conditions; Not holds its operand in Inner.
type Condition struct {
	Op Op

	Value  any
	Answer string

	Conditions []Condition
	Inner      *Condition
}

// IsCrossStep reports whether the condition reads another step's answer.
func (c Condition) IsCrossStep() bool {
	return c.Op.IsLeaf() && c.Answer != ""
}

// On returns a copy of a leaf condition that reads the answer of stepID
// instead of the current value.
func (c Condition) On(stepID string) Condition {
	c.Answer = stepID
	return c
}

func leaf(op Op, v any) Condition {
	return Condition{Op: op, Value: v}
}

// Leaf condition constructors. Numeric operands are float64.
func Equals(v any) Condition { return leaf(OpEquals, v) }
func NotEquals(v any) Condition { return leaf(OpNotEquals, v) }
func Includes(v string) Condition { return leaf(OpIncludes, v) }
func NotIncludes(v string) Condition { return leaf(OpNotIncludes, v) }
func GT(n float64) Condition { return leaf(OpGT, n) }
func GTE(n float64) Condition { return leaf(OpGTE, n) }
func LT(n float64) Condition { return leaf(OpLT, n) }
func LTE(n float64) Condition { return leaf(OpLTE, n) }
func Matches(pattern string) Condition { return leaf(OpMatches, pattern) }
func IsEmpty() Condition { return leaf(OpIsEmpty, true) }
func IsNotEmpty() Condition { return leaf(OpIsNotEmpty, true) }

// And holds when every member holds. An empty And is true.
func And(conds ...Condition) Condition {
	return Condition{Op: OpAnd, Conditions: conds}
}

// Or holds when any member holds. An empty Or is false.
func Or(conds ...Condition) Condition {
	return Condition{Op: OpOr, Conditions: conds}
}

// Not negates c.
func Not(c Condition) Condition {
	return Condition{Op: OpNot, Inner: &c}
}
