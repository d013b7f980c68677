package engine

import (
	"fmt"
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// ObjectKind is the closed set of runtime object variants.
type ObjectKind int

const (
	// KindMedia is a leaf object driven by a player.
	KindMedia ObjectKind = iota + 1
	// KindContext is a composition with links and ports.
	KindContext
	// KindSwitch is a composition presenting one selected child.
	KindSwitch
)

func (k ObjectKind) String() string {
	switch k {
	case KindMedia:
		return "media"
	case KindContext:
		return "context"
	case KindSwitch:
		return "switch"
	}
	return "unknown"
}

// ObjectID indexes the object arena. IDs are stable for the engine's life.
type ObjectID int

// NoObject is the absent ObjectID.
const NoObject ObjectID = -1

type eventKey struct {
	typ   ir.EventType
	iface string
	key   string
}

func keyFor(typ ir.EventType, iface, key string) eventKey {
	if iface == ir.LambdaID {
		iface = ""
	}
	return eventKey{typ: typ, iface: iface, key: key}
}

// Object is the runtime counterpart of a document node.
//
// Parent and children are arena indices; an object never owns its parent.
// Variant-specific state lives in the fields grouped below and is only
// meaningful for the matching Kind.
type Object struct {
	id      ObjectID
	name    string
	kind    ObjectKind
	node    ir.Node
	parent  ObjectID
	aliases []string

	events     map[eventKey]*Event
	eventOrder []*Event
	properties map[string]string
	compiled   bool

	// Compositions.
	children []ObjectID

	// Contexts.
	pending      []*ir.Link
	links        []*Link
	childStarted bool

	// Switches.
	selected ObjectID

	// Media.
	player    Player
	schedule  *Schedule
	mediaTime time.Duration
}

func newObject(kind ObjectKind, node ir.Node) *Object {
	o := &Object{
		id:         NoObject,
		name:       node.ID(),
		kind:       kind,
		node:       node,
		parent:     NoObject,
		events:     make(map[eventKey]*Event),
		properties: make(map[string]string),
		selected:   NoObject,
	}
	for _, p := range node.Properties() {
		o.properties[p.ID] = p.Value
	}
	return o
}

// ID returns the arena index.
func (o *Object) ID() ObjectID { return o.id }

// Name returns the primary identifier (the node id).
func (o *Object) Name() string { return o.name }

// Kind returns the object variant.
func (o *Object) Kind() ObjectKind { return o.kind }

// Node returns the concrete document node.
func (o *Object) Node() ir.Node { return o.node }

// Aliases returns the refer ids registered for this object.
func (o *Object) Aliases() []string { return o.aliases }

// Compiled reports whether link compilation ran for this object.
func (o *Object) Compiled() bool { return o.compiled }

// Links returns compiled links (contexts only).
func (o *Object) Links() []*Link { return o.links }

// PendingLinks returns links not yet compiled (contexts only).
func (o *Object) PendingLinks() []*ir.Link { return o.pending }

// Selected returns the selected child of a switch, or NoObject.
func (o *Object) Selected() ObjectID { return o.selected }

// MediaTime returns the elapsed presentation time of a media object.
func (o *Object) MediaTime() time.Duration { return o.mediaTime }

// Lambda returns the whole-content presentation event.
func (o *Object) Lambda() *Event {
	return o.events[keyFor(ir.Presentation, "", "")]
}

// Event finds an existing event.
func (o *Object) Event(typ ir.EventType, iface, key string) (*Event, bool) {
	ev, ok := o.events[keyFor(typ, iface, key)]
	return ev, ok
}

// Events returns all events in creation order.
func (o *Object) Events() []*Event { return o.eventOrder }

// Property returns a property value. Media objects ask their player first.
func (o *Object) Property(name string) (string, bool) {
	if o.player != nil {
		if v, ok := o.player.Property(name); ok {
			return v, true
		}
	}
	v, ok := o.properties[name]
	return v, ok
}

func (o *Object) hasName(name string) bool {
	if o.name == name {
		return true
	}
	for _, a := range o.aliases {
		if a == name {
			return true
		}
	}
	return false
}

func (o *Object) addEvent(ev *Event) {
	o.events[keyFor(ev.typ, ev.anchor.ID, ev.key)] = ev
	o.eventOrder = append(o.eventOrder, ev)
}

func (o *Object) removePending(id string) {
	for i, l := range o.pending {
		if l.ID == id {
			o.pending = append(o.pending[:i:i], o.pending[i+1:]...)
			return
		}
	}
}

func (o *Object) isPending(id string) bool {
	for _, l := range o.pending {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (o *Object) String() string {
	return fmt.Sprintf("%s(%s)", o.kind, o.name)
}

// Graph is the arena of runtime objects plus the name -> object index,
// which includes every alias.
type Graph struct {
	objects []*Object
	names   map[string]ObjectID
}

func newGraph() *Graph {
	return &Graph{names: make(map[string]ObjectID)}
}

func (g *Graph) add(o *Object) {
	o.id = ObjectID(len(g.objects))
	g.objects = append(g.objects, o)
	g.names[o.name] = o.id
}

// alias registers name as another identifier for the object. Registering
// an existing alias is a no-op.
func (g *Graph) alias(id ObjectID, name string) {
	o := g.objects[id]
	if o.hasName(name) {
		return
	}
	o.aliases = append(o.aliases, name)
	g.names[name] = id
}

// Lookup finds an object by primary id or alias.
func (g *Graph) Lookup(name string) (*Object, bool) {
	id, ok := g.names[name]
	if !ok {
		return nil, false
	}
	return g.objects[id], true
}

// Get returns the object at id, or nil for NoObject.
func (g *Graph) Get(id ObjectID) *Object {
	if id < 0 || int(id) >= len(g.objects) {
		return nil
	}
	return g.objects[id]
}

// Parent returns the parent object, or nil at the root.
func (g *Graph) Parent(o *Object) *Object {
	return g.Get(o.parent)
}

// Children returns the instantiated children of a composition.
func (g *Graph) Children(o *Object) []*Object {
	out := make([]*Object, 0, len(o.children))
	for _, id := range o.children {
		out = append(out, g.objects[id])
	}
	return out
}

// Objects returns every object in arena (creation) order.
func (g *Graph) Objects() []*Object {
	return g.objects
}

// Len returns the number of objects.
func (g *Graph) Len() int {
	return len(g.objects)
}
