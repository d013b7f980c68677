package ir

// Link is a causal rule declared in a context: when any condition holds,
// every action runs.
//
// Links arrive flattened: connector roles and $-parameters have already
// been resolved into concrete binds by the compiler.
type Link struct {
	ID         string `json:"id"`
	Conditions []Bind `json:"conditions"`
	Actions    []Bind `json:"actions"`
}

// Bind ties one connector role to a component's interface point.
type Bind struct {
	Component  string     `json:"component"`
	Interface  string     `json:"interface,omitempty"` // "" = lambda
	EventType  EventType  `json:"event_type"`
	Transition Transition `json:"transition"`
	Key        string     `json:"key,omitempty"` // selection key, conditions only
	Predicate  *Predicate `json:"predicate,omitempty"`
	// Params carries action parameters: value, duration, delay.
	Params map[string]string `json:"params,omitempty"`
}

// Components returns the distinct component ids the link references,
// conditions first, in declaration order.
func (l *Link) Components() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range append(append([]Bind{}, l.Conditions...), l.Actions...) {
		if !seen[b.Component] {
			seen[b.Component] = true
			out = append(out, b.Component)
		}
	}
	return out
}
