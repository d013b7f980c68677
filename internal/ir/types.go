package ir

import "time"

// TimeNone marks an interval bound that is not known (open end).
const TimeNone time.Duration = -1

// LambdaID is the interface id of the implicit whole-content anchor.
const LambdaID = "@lambda"

// AnchorKind classifies interface points of a node.
type AnchorKind int

const (
	// AnchorLambda is the implicit anchor covering a node's whole content.
	AnchorLambda AnchorKind = iota + 1
	// AnchorInterval is a content anchor with begin/end times.
	AnchorInterval
	// AnchorLabel is a content anchor resolved by the player (no times).
	AnchorLabel
	// AnchorProperty names a property, target of attribution events.
	AnchorProperty
	// AnchorSwitchPort is a switch interface mapped onto the selected child.
	AnchorSwitchPort
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorLambda:
		return "lambda"
	case AnchorInterval:
		return "interval"
	case AnchorLabel:
		return "label"
	case AnchorProperty:
		return "property"
	case AnchorSwitchPort:
		return "switch-port"
	}
	return "unknown"
}

// Anchor is an interface point declared on a node.
type Anchor struct {
	ID    string        `json:"id"`
	Kind  AnchorKind    `json:"kind"`
	Begin time.Duration `json:"begin,omitempty"`
	End   time.Duration `json:"end,omitempty"` // TimeNone when open
	Value string        `json:"value,omitempty"`
}

// IsLambda reports whether a is the whole-content anchor.
func (a Anchor) IsLambda() bool {
	return a.Kind == AnchorLambda
}

// Timed reports whether a participates in time scheduling.
func (a Anchor) Timed() bool {
	return a.Kind == AnchorLambda || a.Kind == AnchorInterval
}

// Node is a vertex of the document tree.
//
// The set of implementations is closed: *Media, *Context, *Switch and
// *Refer. Callers switch on the concrete type.
type Node interface {
	ID() string
	Parent() Node
	Lambda() Anchor
	Anchor(id string) (Anchor, bool)
	Properties() []Anchor

	setParent(Node)
	node()
}

// Base holds the fields shared by every node kind.
type Base struct {
	NodeID  string
	Anchors []Anchor

	parent Node
}

func (b *Base) ID() string { return b.NodeID }
func (b *Base) Parent() Node { return b.parent }
func (b *Base) setParent(p Node) { b.parent = p }
func (b *Base) Lambda() Anchor { return Anchor{ID: LambdaID, Kind: AnchorLambda, End: TimeNone} }
func (b *Base) Properties() []Anchor {
	var props []Anchor
	for _, a := range b.Anchors {
		if a.Kind == AnchorProperty {
			props = append(props, a)
		}
	}
	return props
}

// Anchor looks up a declared anchor. The empty id and LambdaID resolve to
// the lambda anchor.
func (b *Base) Anchor(id string) (Anchor, bool) {
	if id == "" || id == LambdaID {
		return b.Lambda(), true
	}
	for _, a := range b.Anchors {
		if a.ID == id {
			return a, true
		}
	}
	return Anchor{}, false
}

// Media is a leaf content node played by an external player.
type Media struct {
	Base
	Src      string
	MimeType string
	// Duration is the explicit content duration; zero means indefinite.
	Duration time.Duration
	// Settings marks the global settings node: no player, properties only.
	Settings bool
}

func (*Media) node() {}

// Lambda returns the whole-content anchor, bounded by Duration when known.
func (m *Media) Lambda() Anchor {
	end := TimeNone
	if m.Duration > 0 {
		end = m.Duration
	}
	return Anchor{ID: LambdaID, Kind: AnchorLambda, End: end}
}

// Anchor resolves id against the media's anchors, bounding the lambda.
func (m *Media) Anchor(id string) (Anchor, bool) {
	if id == "" || id == LambdaID {
		return m.Lambda(), true
	}
	return m.Base.Anchor(id)
}

// Port exposes a component's interface point on the enclosing context.
type Port struct {
	ID        string
	Component string
	Interface string
}

// Context is a composition whose children run under its links.
type Context struct {
	Base
	Children []Node
	Ports    []Port
	Links    []*Link
}

func (*Context) node() {}

// Port finds a port by id.
func (c *Context) Port(id string) (Port, bool) {
	for _, p := range c.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Mapping binds a switch port onto one child's interface point.
type Mapping struct {
	Component string
	Interface string
}

// SwitchPort is an interface of a switch, mapped per child.
type SwitchPort struct {
	ID       string
	Mappings []Mapping
}

// Rule selects Component when Predicate holds.
type Rule struct {
	Component string
	Predicate *Predicate
}

// Switch is a composition of alternatives; exactly one child is
// presented at a time.
type Switch struct {
	Base
	Children    []Node
	Rules       []Rule
	Default     string
	SwitchPorts []SwitchPort
}

func (*Switch) node() {}

// Anchor resolves switch ports before declared anchors.
func (s *Switch) Anchor(id string) (Anchor, bool) {
	if sp, ok := s.SwitchPort(id); ok {
		return Anchor{ID: sp.ID, Kind: AnchorSwitchPort, End: TimeNone}, true
	}
	return s.Base.Anchor(id)
}

// SwitchPort finds a switch port by id.
func (s *Switch) SwitchPort(id string) (SwitchPort, bool) {
	for _, sp := range s.SwitchPorts {
		if sp.ID == id {
			return sp, true
		}
	}
	return SwitchPort{}, false
}

// Child finds a direct child by id.
func (s *Switch) Child(id string) (Node, bool) {
	for _, c := range s.Children {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Refer is an alias standing for another node; it never has a runtime
// object of its own.
type Refer struct {
	Base
	Target string
}

func (*Refer) node() {}

// Children returns the direct children of a composition, or nil.
func Children(n Node) []Node {
	switch c := n.(type) {
	case *Context:
		return c.Children
	case *Switch:
		return c.Children
	}
	return nil
}
