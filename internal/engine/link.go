package engine

import "github.com/roach88/hyperplay/internal/ir"

// Condition triggers a link when its event takes the given transition
// and the optional predicate holds.
type Condition struct {
	Event      *Event
	Transition ir.Transition
	Predicate  *ir.Predicate
}

// Action is a request to apply a transition to an event.
type Action struct {
	Target     *Event
	Transition ir.Transition
	Params     Params
}

func (a Action) String() string {
	return a.Transition.String() + "(" + a.Target.QualifiedID() + ")"
}

// Link is a compiled causal link: every bind resolved to a live event.
type Link struct {
	ID         string
	Context    ObjectID
	Conditions []Condition
	Actions    []Action

	// order is the link's position among its context's declared links.
	order int
}

// matching returns the conditions triggered by (ev, tr), in declaration
// order.
func (l *Link) matching(ev *Event, tr ir.Transition) []Condition {
	var out []Condition
	for _, c := range l.Conditions {
		if c.Event == ev && c.Transition == tr {
			out = append(out, c)
		}
	}
	return out
}
