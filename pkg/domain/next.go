package domain

// NextKind is the discriminant of Next.
type NextKind int

const (
	// NextLiteral always goes to Target. An empty Target ends navigation.
	NextLiteral NextKind = iota
	// NextBranches evaluates Branches in order; the first match wins.
	NextBranches
)

// Branch is one conditional edge out of a step.
// A Default branch has no condition and always matches; it must be last.
type Branch struct {
	When    *Condition
	Target  string
	Default bool
}

// When builds a conditional branch.
func When(cond Condition, target string) Branch {
	return Branch{When: &cond, Target: target}
}

// Otherwise builds the default branch.
func Otherwise(target string) Branch {
	return Branch{Target: target, Default: true}
}

// Next describes where a step leads once answered.
type Next struct {
	Kind     NextKind
	Target   string
	Branches []Branch
}

// Goto always navigates to target.
func Goto(target string) Next {
	return Next{Kind: NextLiteral, Target: target}
}

// End is the empty literal used by stop steps.
func End() Next {
	return Next{Kind: NextLiteral}
}

// Branches chooses the target by evaluating branches in order.
func Branches(branches ...Branch) Next {
	return Next{Kind: NextBranches, Branches: branches}
}

// IsBranching reports whether the next target depends on conditions.
func (n Next) IsBranching() bool {
	return n.Kind == NextBranches
}

// Targets returns every non-empty target reachable from n, in declaration order.
func (n Next) Targets() []string {
	if n.Kind == NextLiteral {
		if n.Target == "" {
			return nil
		}
		return []string{n.Target}
	}
	targets := make([]string, 0, len(n.Branches))
	for _, b := range n.Branches {
		if b.Target != "" {
			targets = append(targets, b.Target)
		}
	}
	return targets
}
