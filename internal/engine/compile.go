package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/hyperplay/internal/ir"
)

// obtain returns the runtime object for n, creating it (and its
// ancestors) on first use. Refer nodes resolve to their target's object
// and register their id as an alias.
func (e *Engine) obtain(n ir.Node) (*Object, error) {
	if obj, ok := e.graph.Lookup(n.ID()); ok {
		return obj, nil
	}
	if r, ok := n.(*ir.Refer); ok {
		return e.obtainRefer(r)
	}

	var parent *Object
	if pn := n.Parent(); pn != nil {
		var err error
		if parent, err = e.obtain(pn); err != nil {
			return nil, err
		}
		// Compiling the parent's links may have created n already.
		if obj, ok := e.graph.Lookup(n.ID()); ok {
			return obj, nil
		}
	}

	obj, err := e.newObjectFor(n)
	if err != nil {
		return nil, err
	}
	e.graph.add(obj)
	if parent != nil {
		obj.parent = parent.id
		parent.children = append(parent.children, obj.id)
	}
	slog.Debug("object created", "object", obj.name, "kind", obj.kind.String(), "id", int(obj.id))

	if m, ok := n.(*ir.Media); ok && m.Settings {
		obj.compiled = true
		return obj, nil
	}

	obj.compiled = true
	if err := e.compileLinksFor(obj); err != nil {
		return nil, err
	}

	for _, rid := range e.doc.Referrers(obj.name) {
		rn, ok := e.doc.Lookup(rid)
		if !ok {
			continue
		}
		if _, err := e.obtain(rn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// obtainRefer aliases r onto its target's object and compiles the links
// that name r in r's own scope.
func (e *Engine) obtainRefer(r *ir.Refer) (*Object, error) {
	target, err := e.doc.Deref(r)
	if err != nil {
		return nil, NewDocumentError(r.ID(), err)
	}
	obj, err := e.obtain(target)
	if err != nil {
		return nil, err
	}
	if obj.hasName(r.ID()) {
		return obj, nil
	}
	e.graph.alias(obj.id, r.ID())
	slog.Debug("alias registered", "alias", r.ID(), "object", obj.name)

	if pn := r.Parent(); pn != nil {
		scope, err := e.obtain(pn)
		if err != nil {
			return nil, err
		}
		if err := e.compileAncestors(scope, obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (e *Engine) newObjectFor(n ir.Node) (*Object, error) {
	var obj *Object
	switch node := n.(type) {
	case *ir.Media:
		obj = newObject(KindMedia, node)
		obj.addEvent(newEvent(obj, node.Lambda(), ir.Presentation, ""))
		if node.Settings {
			return obj, nil
		}
		obj.schedule = NewSchedule()
		obj.schedule.Add(obj.Lambda())
		for _, a := range node.Anchors {
			if a.Kind != ir.AnchorInterval {
				continue
			}
			ev := newEvent(obj, a, ir.Presentation, "")
			obj.addEvent(ev)
			obj.schedule.Add(ev)
		}
	case *ir.Context:
		obj = newObject(KindContext, node)
		obj.addEvent(newEvent(obj, node.Lambda(), ir.Presentation, ""))
		obj.pending = append([]*ir.Link(nil), node.Links...)
	case *ir.Switch:
		obj = newObject(KindSwitch, node)
		obj.addEvent(newEvent(obj, node.Lambda(), ir.Presentation, ""))
	default:
		return nil, NewDocumentError(n.ID(), fmt.Errorf("cannot instantiate %T", n))
	}
	return obj, nil
}

// compileLinksFor compiles every pending link, in obj and its enclosing
// contexts, that has a condition on obj. A new context also compiles its
// own links whose conditions name objects that already exist.
func (e *Engine) compileLinksFor(obj *Object) error {
	scope := e.graph.Parent(obj)
	if obj.kind == KindContext {
		if err := e.compileExisting(obj); err != nil {
			return err
		}
	}
	if scope == nil {
		return nil
	}
	return e.compileAncestors(scope, obj)
}

// compileAncestors walks from scope outward, compiling pending links with
// a condition on obj.
func (e *Engine) compileAncestors(scope, obj *Object) error {
	for ctx := scope; ctx != nil; ctx = e.graph.Parent(ctx) {
		if ctx.kind != KindContext || len(ctx.pending) == 0 {
			continue
		}
		for _, l := range append([]*ir.Link(nil), ctx.pending...) {
			if !ctx.isPending(l.ID) || !e.linkReferences(l, obj.hasName) {
				continue
			}
			if err := e.createLink(ctx, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) compileExisting(ctx *Object) error {
	exists := func(name string) bool {
		_, ok := e.graph.Lookup(name)
		return ok
	}
	for _, l := range append([]*ir.Link(nil), ctx.pending...) {
		if !ctx.isPending(l.ID) || !e.linkReferences(l, exists) {
			continue
		}
		if err := e.createLink(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// linkReferences reports whether any condition of l resolves through a
// node accepted by match.
func (e *Engine) linkReferences(l *ir.Link, match func(string) bool) bool {
	for _, b := range l.Conditions {
		res, err := e.doc.Resolve(b.Component, b.Interface)
		if err != nil {
			// Reported when the link is compiled through another condition
			// or at the component itself.
			if match(b.Component) {
				return true
			}
			continue
		}
		for _, n := range res.Chain {
			if match(n.ID()) {
				return true
			}
		}
	}
	return false
}

// createLink binds every condition and action of l to live events and
// moves it from ctx's pending set to its compiled links.
func (e *Engine) createLink(ctx *Object, l *ir.Link) error {
	ctx.removePending(l.ID)

	link := &Link{ID: l.ID, Context: ctx.id, order: linkOrder(ctx, l.ID)}
	for _, b := range l.Conditions {
		ev, err := e.bindEvent(l, b)
		if err != nil {
			return err
		}
		link.Conditions = append(link.Conditions, Condition{
			Event:      ev,
			Transition: b.Transition,
			Predicate:  b.Predicate,
		})
	}
	for _, b := range l.Actions {
		ev, err := e.bindEvent(l, b)
		if err != nil {
			return err
		}
		var params Params
		if len(b.Params) > 0 {
			params = Params(b.Params).clone()
		}
		link.Actions = append(link.Actions, Action{
			Target:     ev,
			Transition: b.Transition,
			Params:     params,
		})
	}

	pos := len(ctx.links)
	for i, other := range ctx.links {
		if other.order > link.order {
			pos = i
			break
		}
	}
	ctx.links = append(ctx.links, nil)
	copy(ctx.links[pos+1:], ctx.links[pos:])
	ctx.links[pos] = link

	slog.Debug("link compiled", "link", l.ID, "context", ctx.name)
	return nil
}

func linkOrder(ctx *Object, id string) int {
	c, ok := ctx.node.(*ir.Context)
	if !ok {
		return 0
	}
	for i, l := range c.Links {
		if l.ID == id {
			return i
		}
	}
	return len(c.Links)
}

func (e *Engine) bindEvent(l *ir.Link, b ir.Bind) (*Event, error) {
	res, err := e.doc.Resolve(b.Component, b.Interface)
	if err != nil {
		return nil, NewUnresolvedBindError(l.ID, b.Component, b.Interface, err)
	}
	obj, err := e.obtain(res.Target)
	if err != nil {
		return nil, err
	}
	ev, err := e.eventFor(obj, res.Anchor, b.EventType, b.Key)
	if err != nil {
		return nil, NewUnresolvedBindError(l.ID, b.Component, b.Interface, err)
	}
	return ev, nil
}

// eventFor returns obj's event for (anchor, typ, key), creating it on
// first use. On a switch, every event other than its presentation lambda
// is a proxy onto the selected child.
func (e *Engine) eventFor(obj *Object, anchor ir.Anchor, typ ir.EventType, key string) (*Event, error) {
	if typ != ir.Selection {
		key = ""
	}
	if ev, ok := obj.events[keyFor(typ, anchor.ID, key)]; ok {
		return ev, nil
	}
	if err := checkAnchor(anchor, typ); err != nil {
		return nil, fmt.Errorf("%s: %w", obj.name, err)
	}

	ev := newEvent(obj, anchor, typ, key)
	if obj.kind == KindSwitch && (anchor.Kind == ir.AnchorSwitchPort || typ != ir.Presentation || !anchor.IsLambda()) {
		ev.proxy = true
		obj.addEvent(ev)
		mapped, err := e.proxyTarget(obj, ev)
		if err != nil {
			return nil, err
		}
		ev.mapped = mapped
		return ev, nil
	}

	obj.addEvent(ev)
	if obj.schedule != nil && typ == ir.Presentation {
		obj.schedule.Add(ev)
	}
	return ev, nil
}

func checkAnchor(a ir.Anchor, typ ir.EventType) error {
	switch typ {
	case ir.Presentation, ir.Selection:
		if a.Kind == ir.AnchorProperty {
			return fmt.Errorf("%s event on property %q", typ, a.ID)
		}
	case ir.Attribution:
		if a.Kind != ir.AnchorProperty && a.Kind != ir.AnchorSwitchPort {
			return fmt.Errorf("attribution event on %s anchor %q", a.Kind, a.ID)
		}
	default:
		return fmt.Errorf("unknown event type %d", int(typ))
	}
	return nil
}

// proxyTarget finds the event a switch proxy stands for under the current
// selection. It returns nil when nothing is selected or the selected child
// has no matching interface point.
func (e *Engine) proxyTarget(sw *Object, proxy *Event) (*Event, error) {
	child := e.graph.Get(sw.selected)
	if child == nil {
		return nil, nil
	}

	if proxy.anchor.Kind == ir.AnchorSwitchPort {
		sp, _ := sw.node.(*ir.Switch).SwitchPort(proxy.anchor.ID)
		for _, m := range sp.Mappings {
			if !child.hasName(m.Component) {
				continue
			}
			res, err := e.doc.Resolve(m.Component, m.Interface)
			if err != nil {
				return nil, NewDocumentError(sw.name, fmt.Errorf("switch port %s: %w", sp.ID, err))
			}
			target, err := e.obtain(res.Target)
			if err != nil {
				return nil, err
			}
			ev, err := e.eventFor(target, res.Anchor, proxy.typ, proxy.key)
			if err != nil {
				return nil, NewDocumentError(sw.name, fmt.Errorf("switch port %s: %w", sp.ID, err))
			}
			return ev, nil
		}
		return nil, nil
	}

	anchor, ok := child.node.Anchor(proxy.anchor.ID)
	if !ok {
		return nil, nil
	}
	if checkAnchor(anchor, proxy.typ) != nil {
		return nil, nil
	}
	return e.eventFor(child, anchor, proxy.typ, proxy.key)
}

// portEvent returns the presentation event a context port exposes, or nil
// for ports onto properties.
func (e *Engine) portEvent(ctx *Object, port ir.Port) (*Event, error) {
	res, err := e.doc.Resolve(ctx.name, port.ID)
	if err != nil {
		return nil, NewDocumentError(ctx.name, fmt.Errorf("port %s: %w", port.ID, err))
	}
	if res.Anchor.Kind == ir.AnchorProperty {
		return nil, nil
	}
	obj, err := e.obtain(res.Target)
	if err != nil {
		return nil, err
	}
	ev, err := e.eventFor(obj, res.Anchor, ir.Presentation, "")
	if err != nil {
		return nil, NewDocumentError(ctx.name, fmt.Errorf("port %s: %w", port.ID, err))
	}
	return ev, nil
}

// scopesOf returns the compositions obj takes part in: its parent and the
// parents of the refer nodes aliasing it.
func (e *Engine) scopesOf(obj *Object) []*Object {
	var out []*Object
	if parent := e.graph.Parent(obj); parent != nil {
		out = append(out, parent)
	}
	for _, alias := range obj.aliases {
		n, ok := e.doc.Lookup(alias)
		if !ok || n.Parent() == nil {
			continue
		}
		scope, ok := e.graph.Lookup(n.Parent().ID())
		if !ok || slices.Contains(out, scope) {
			continue
		}
		out = append(out, scope)
	}
	return out
}

// portReaches reports whether one of ctx's ports resolves to obj.
func (e *Engine) portReaches(ctx, obj *Object) bool {
	c, ok := ctx.node.(*ir.Context)
	if !ok {
		return false
	}
	for _, port := range c.Ports {
		res, err := e.doc.Resolve(ctx.name, port.ID)
		if err != nil || res.Target == nil {
			continue
		}
		if obj.hasName(res.Target.ID()) {
			return true
		}
	}
	return false
}

// selectChild asks the rule adaptor for a child and maps the switch's
// proxies onto it. A different previous child is deselected with force.
func (e *Engine) selectChild(sw *Object) error {
	node := sw.node.(*ir.Switch)
	chosen, err := e.rules.SelectChild(node, e.eval)
	if err != nil {
		return fmt.Errorf("switch %s: %w", sw.name, err)
	}
	if chosen == nil {
		return NewSwitchError(sw.name)
	}
	child, err := e.obtain(chosen)
	if err != nil {
		return err
	}
	if sw.selected != NoObject && sw.selected != child.id {
		e.deselect(sw, true)
	}
	sw.selected = child.id
	slog.Debug("switch selected", "switch", sw.name, "child", child.name)
	return e.remap(sw)
}

func (e *Engine) remap(sw *Object) error {
	for _, ev := range sw.eventOrder {
		if !ev.proxy {
			continue
		}
		mapped, err := e.proxyTarget(sw, ev)
		if err != nil {
			return err
		}
		ev.mapped = mapped
	}
	return nil
}

// deselect drops the switch's selection and unmaps its proxies. With
// force, the previous child and the proxies mapped onto it are put to
// sleep without running hooks.
func (e *Engine) deselect(sw *Object, force bool) {
	old := e.graph.Get(sw.selected)
	if old != nil && force {
		e.forceSleep(old)
		for _, ev := range sw.eventOrder {
			if ev.proxy && ev.mapped != nil && ev.mapped.object == old {
				ev.forceState(ir.Sleeping)
			}
		}
		slog.Debug("switch child forced to sleep", "switch", sw.name, "child", old.name)
	}
	for _, ev := range sw.eventOrder {
		if ev.proxy {
			ev.mapped = nil
		}
	}
	sw.selected = NoObject
}

// forceSleep puts obj and its descendants to sleep without hooks.
func (e *Engine) forceSleep(obj *Object) {
	awake := obj.Lambda() != nil && obj.Lambda().State() != ir.Sleeping
	for _, ev := range obj.eventOrder {
		ev.forceState(ir.Sleeping)
	}
	if obj.player != nil && awake {
		if err := obj.player.Stop(); err != nil {
			slog.Warn("player failed to stop", "object", obj.name, "error", err)
		}
	}
	if obj.schedule != nil {
		obj.schedule.Reset()
		obj.mediaTime = 0
	}
	for _, child := range e.graph.Children(obj) {
		e.forceSleep(child)
	}
	if obj.kind == KindSwitch {
		for _, ev := range obj.eventOrder {
			if ev.proxy {
				ev.mapped = nil
			}
		}
		obj.selected = NoObject
	}
}
