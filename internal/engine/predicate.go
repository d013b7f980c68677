package engine

import (
	"strings"

	"github.com/roach88/hyperplay/internal/ir"
)

// PropertyLookup reads a property of the object named by id. found is
// false when the object exists but lacks the property; err is non-nil
// when no such object exists.
type PropertyLookup func(object, name string) (value string, found bool, err error)

// Evaluator evaluates predicate trees against live properties.
type Evaluator struct {
	lookup PropertyLookup
}

// NewEvaluator creates an evaluator reading properties through lookup.
func NewEvaluator(lookup PropertyLookup) *Evaluator {
	return &Evaluator{lookup: lookup}
}

// Eval evaluates p. An empty And holds; an empty Or does not. Comparisons
// are lexicographic on the resolved operand strings.
func (e *Evaluator) Eval(p *ir.Predicate) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch p.Kind {
	case ir.PredTrue:
		return true, nil
	case ir.PredFalse:
		return false, nil
	case ir.PredAtom:
		left, err := e.Operand(p.Left)
		if err != nil {
			return false, err
		}
		right, err := e.Operand(p.Right)
		if err != nil {
			return false, err
		}
		return compare(left, p.Test, right), nil
	case ir.PredAnd:
		for _, c := range p.Children {
			ok, err := e.Eval(c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ir.PredOr:
		for _, c := range p.Children {
			ok, err := e.Eval(c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ir.PredNot:
		return false, NewUnsupportedPredicateError(p.String())
	}
	return false, NewUnsupportedPredicateError(p.String())
}

// Operand resolves a "$object.property" reference; any other string is
// a literal. A missing property reads as the empty string.
func (e *Evaluator) Operand(s string) (string, error) {
	if !strings.HasPrefix(s, "$") {
		return s, nil
	}
	object, name, ok := strings.Cut(s[1:], ".")
	if !ok || object == "" || name == "" {
		return s, nil
	}
	v, found, err := e.lookup(object, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return v, nil
}

func compare(left string, test ir.Comparator, right string) bool {
	c := strings.Compare(left, right)
	switch test {
	case ir.CmpEQ:
		return c == 0
	case ir.CmpNE:
		return c != 0
	case ir.CmpLT:
		return c < 0
	case ir.CmpLTE:
		return c <= 0
	case ir.CmpGT:
		return c > 0
	case ir.CmpGTE:
		return c >= 0
	}
	return false
}
