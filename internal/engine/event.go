package engine

import (
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// Params carries action parameters (value, duration, delay, offset).
type Params map[string]string

// clone returns an independent copy; nil stays nil.
func (p Params) clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// TransitionHooks lets the owner of an event veto a transition before it
// happens and react to it afterwards.
type TransitionHooks interface {
	BeforeTransition(ev *Event, tr ir.Transition, params Params) (bool, error)
	AfterTransition(ev *Event, tr ir.Transition, from ir.EventState, params Params) error
}

// Event is a state machine attached to one interface point of an object.
//
// Identity is (object, anchor, type, key). Switch proxy events additionally
// carry a mapped event on the currently selected child.
type Event struct {
	typ    ir.EventType
	object *Object
	anchor ir.Anchor
	key    string

	state       ir.EventState
	occurrences int
	params      Params

	// begin and end bound presentation events; end is ir.TimeNone when open.
	begin time.Duration
	end   time.Duration

	proxy  bool
	mapped *Event
}

func newEvent(obj *Object, anchor ir.Anchor, typ ir.EventType, key string) *Event {
	ev := &Event{
		typ:    typ,
		object: obj,
		anchor: anchor,
		key:    key,
		state:  ir.Sleeping,
		begin:  anchor.Begin,
		end:    anchor.End,
	}
	if anchor.IsLambda() || anchor.Kind == ir.AnchorLabel {
		ev.begin = 0
	}
	return ev
}

// Type returns the event type.
func (ev *Event) Type() ir.EventType { return ev.typ }

// Object returns the owning object.
func (ev *Event) Object() *Object { return ev.object }

// Anchor returns the interface point the event is attached to.
func (ev *Event) Anchor() ir.Anchor { return ev.anchor }

// Key returns the selection key; empty for other types.
func (ev *Event) Key() string { return ev.key }

// State returns the current state.
func (ev *Event) State() ir.EventState { return ev.state }

// Occurrences counts completed (stopped) occurrences.
func (ev *Event) Occurrences() int { return ev.occurrences }

// Param returns the value of a parameter from the last accepted transition.
func (ev *Event) Param(name string) (string, bool) {
	v, ok := ev.params[name]
	return v, ok
}

// IsLambda reports whether the event is attached to the whole-content anchor.
func (ev *Event) IsLambda() bool { return ev.anchor.IsLambda() }

// IsProxy reports whether the event is a switch proxy.
func (ev *Event) IsProxy() bool { return ev.proxy }

// Mapped returns the event a switch proxy currently stands for.
func (ev *Event) Mapped() *Event { return ev.mapped }

// Interval returns the presentation bounds.
func (ev *Event) Interval() (begin, end time.Duration) { return ev.begin, ev.end }

// QualifiedID renders the full identifier using the object's primary name.
func (ev *Event) QualifiedID() string {
	return ir.QualifiedID(ev.object.name, ev.typ, ev.anchor.ID, ev.key)
}

func (ev *Event) String() string { return ev.QualifiedID() }

// Transition applies tr. It returns false when the transition is illegal
// in the current state or vetoed by hooks; the state is then unchanged.
// Errors come only from hooks and are fatal to the caller's propagation.
func (ev *Event) Transition(tr ir.Transition, params Params, hooks TransitionHooks) (bool, error) {
	next, ok := ir.NextState(ev.state, tr)
	if !ok {
		return false, nil
	}
	if hooks != nil {
		accept, err := hooks.BeforeTransition(ev, tr, params)
		if err != nil {
			return false, err
		}
		if !accept {
			return false, nil
		}
	}

	from := ev.state
	ev.state = next
	if tr == ir.Stop {
		ev.occurrences++
	}
	if len(params) > 0 {
		ev.params = params.clone()
	}

	if hooks != nil {
		if err := hooks.AfterTransition(ev, tr, from, params); err != nil {
			return true, err
		}
	}
	return true, nil
}

// forceState sets the state without hooks or propagation. Used by the
// scheduler when seeking and by switch deselection.
func (ev *Event) forceState(s ir.EventState) {
	ev.state = s
}
