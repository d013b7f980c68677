package ir

import (
	"fmt"
)

// SettingsID is the id given to the settings node when none is declared.
const SettingsID = "settings"

// Document is an immutable, indexed document tree.
type Document struct {
	ID       string
	Root     *Context
	Settings *Media

	nodes     map[string]Node
	order     []Node
	referrers map[string][]string
}

// NewDocument indexes the tree under root, wires parent links and
// checks that ids are unique and refer targets exist.
func NewDocument(id string, root *Context) (*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("document %q: root context is nil", id)
	}
	d := &Document{
		ID:        id,
		Root:      root,
		nodes:     make(map[string]Node),
		referrers: make(map[string][]string),
	}
	if err := d.index(root, nil); err != nil {
		return nil, fmt.Errorf("document %q: %w", id, err)
	}
	for _, n := range d.order {
		r, ok := n.(*Refer)
		if !ok {
			continue
		}
		target, err := d.Deref(r)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
		d.referrers[target.ID()] = append(d.referrers[target.ID()], r.ID())
	}
	return d, nil
}

func (d *Document) index(n Node, parent Node) error {
	if n.ID() == "" {
		return fmt.Errorf("node with empty id under %q", idOf(parent))
	}
	if _, dup := d.nodes[n.ID()]; dup {
		return fmt.Errorf("duplicate node id %q", n.ID())
	}
	if parent != nil {
		n.setParent(parent)
	}
	d.nodes[n.ID()] = n
	d.order = append(d.order, n)
	if m, ok := n.(*Media); ok && m.Settings {
		if d.Settings != nil {
			return fmt.Errorf("second settings node %q (first is %q)", m.ID(), d.Settings.ID())
		}
		d.Settings = m
	}
	for _, c := range Children(n) {
		if c == nil {
			return fmt.Errorf("nil child under %q", n.ID())
		}
		if err := d.index(c, n); err != nil {
			return err
		}
	}
	return nil
}

func idOf(n Node) string {
	if n == nil {
		return "<root>"
	}
	return n.ID()
}

// Lookup finds a node by id.
func (d *Document) Lookup(id string) (Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns every node in pre-order.
func (d *Document) Nodes() []Node {
	return d.order
}

// Referrers returns the ids of refer nodes standing for the node id.
func (d *Document) Referrers(id string) []string {
	return d.referrers[id]
}

// Deref follows refer nodes until a concrete node is reached.
func (d *Document) Deref(n Node) (Node, error) {
	seen := make(map[string]bool)
	for {
		r, ok := n.(*Refer)
		if !ok {
			return n, nil
		}
		if seen[r.ID()] {
			return nil, fmt.Errorf("refer cycle through %q", r.ID())
		}
		seen[r.ID()] = true
		target, ok := d.nodes[r.Target]
		if !ok {
			return nil, fmt.Errorf("refer %q: target %q not found", r.ID(), r.Target)
		}
		n = target
	}
}

// Resolution is the outcome of following a bind through ports and refers.
type Resolution struct {
	// Chain lists every node visited, starting with the named component.
	Chain []Node
	// Target is the node the interface point finally belongs to. It may be
	// a Refer; Anchor is looked up on its dereferenced node.
	Target Node
	Anchor Anchor
}

// Resolve follows (component, iface) through context ports and refer
// nodes down to a concrete anchor.
func (d *Document) Resolve(component, iface string) (Resolution, error) {
	var res Resolution
	n, ok := d.nodes[component]
	if !ok {
		return res, fmt.Errorf("component %q not found", component)
	}
	for depth := 0; depth <= len(d.order); depth++ {
		res.Chain = append(res.Chain, n)
		concrete, err := d.Deref(n)
		if err != nil {
			return res, err
		}
		if concrete != n {
			res.Chain = append(res.Chain, concrete)
		}
		if ctx, ok := concrete.(*Context); ok {
			if p, ok := ctx.Port(iface); ok {
				next, ok := d.nodes[p.Component]
				if !ok {
					return res, fmt.Errorf("port %s.%s: component %q not found", ctx.ID(), p.ID, p.Component)
				}
				n, iface = next, p.Interface
				continue
			}
		}
		a, ok := concrete.Anchor(iface)
		if !ok {
			return res, fmt.Errorf("interface %q not found on %q", iface, concrete.ID())
		}
		res.Target = n
		res.Anchor = a
		return res, nil
	}
	return res, fmt.Errorf("port nesting too deep resolving %s.%s", component, iface)
}
