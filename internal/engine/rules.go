package engine

import "github.com/roach88/hyperplay/internal/ir"

// RuleContext evaluates switch rule predicates against current state.
// *Evaluator implements it.
type RuleContext interface {
	Eval(p *ir.Predicate) (bool, error)
}

// RuleAdaptor chooses which child of a switch to present. Returning a nil
// node means no child is selectable.
type RuleAdaptor interface {
	SelectChild(sw *ir.Switch, rc RuleContext) (ir.Node, error)
}

// RuleAdaptorFunc adapts a function to RuleAdaptor.
type RuleAdaptorFunc func(sw *ir.Switch, rc RuleContext) (ir.Node, error)

// SelectChild implements RuleAdaptor.
func (f RuleAdaptorFunc) SelectChild(sw *ir.Switch, rc RuleContext) (ir.Node, error) {
	return f(sw, rc)
}

// DefaultRuleAdaptor picks the first child whose rule holds, then the
// default child.
type DefaultRuleAdaptor struct{}

// SelectChild implements RuleAdaptor.
func (DefaultRuleAdaptor) SelectChild(sw *ir.Switch, rc RuleContext) (ir.Node, error) {
	for _, r := range sw.Rules {
		ok, err := rc.Eval(r.Predicate)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if c, found := sw.Child(r.Component); found {
			return c, nil
		}
	}
	if sw.Default != "" {
		if c, found := sw.Child(sw.Default); found {
			return c, nil
		}
	}
	return nil, nil
}
