package ir

import "fmt"

// PredicateKind tags a node of a predicate tree.
type PredicateKind int

const (
	PredFalse PredicateKind = iota + 1
	PredTrue
	PredAtom
	PredNot
	PredAnd
	PredOr
)

// Comparator is the test applied by an atomic predicate.
type Comparator int

const (
	CmpEQ Comparator = iota + 1
	CmpNE
	CmpLT
	CmpLTE
	CmpGT
	CmpGTE
)

var comparatorNames = map[Comparator]string{
	CmpEQ:  "eq",
	CmpNE:  "ne",
	CmpLT:  "lt",
	CmpLTE: "lte",
	CmpGT:  "gt",
	CmpGTE: "gte",
}

func (c Comparator) String() string {
	if s, ok := comparatorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Comparator(%d)", int(c))
}

// ParseComparator converts an operator name into a Comparator.
func ParseComparator(s string) (Comparator, error) {
	for c, name := range comparatorNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown comparator %q", s)
}

// Predicate is a boolean expression over property references and literals.
//
// Operands starting with '$' are property references of the form
// "$object.property"; everything else is a literal string.
type Predicate struct {
	Kind     PredicateKind
	Left     string
	Test     Comparator
	Right    string
	Children []*Predicate
}

// True returns a predicate that always holds.
func True() *Predicate { return &Predicate{Kind: PredTrue} }

// False returns a predicate that never holds.
func False() *Predicate { return &Predicate{Kind: PredFalse} }

// Atom compares two operands.
func Atom(left string, test Comparator, right string) *Predicate {
	return &Predicate{Kind: PredAtom, Left: left, Test: test, Right: right}
}

// And holds when every child holds.
func And(children ...*Predicate) *Predicate {
	return &Predicate{Kind: PredAnd, Children: children}
}

// Or holds when some child holds.
func Or(children ...*Predicate) *Predicate {
	return &Predicate{Kind: PredOr, Children: children}
}

// Not negates a single child.
func Not(child *Predicate) *Predicate {
	return &Predicate{Kind: PredNot, Children: []*Predicate{child}}
}

// ContainsNot reports whether p has a Not node anywhere in its tree.
func (p *Predicate) ContainsNot() bool {
	if p == nil {
		return false
	}
	if p.Kind == PredNot {
		return true
	}
	for _, c := range p.Children {
		if c.ContainsNot() {
			return true
		}
	}
	return false
}

func (p *Predicate) String() string {
	if p == nil {
		return "<nil>"
	}
	switch p.Kind {
	case PredTrue:
		return "true"
	case PredFalse:
		return "false"
	case PredAtom:
		return fmt.Sprintf("%s %s %s", p.Left, p.Test, p.Right)
	case PredNot:
		return fmt.Sprintf("not(%s)", p.Children[0])
	case PredAnd, PredOr:
		op := "and"
		if p.Kind == PredOr {
			op = "or"
		}
		s := op + "("
		for i, c := range p.Children {
			if i > 0 {
				s += ", "
			}
			s += c.String()
		}
		return s + ")"
	}
	return "?"
}
