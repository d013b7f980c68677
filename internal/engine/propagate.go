package engine

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// propagation is one drain of the action worklist.
//
// Actions are popped LIFO. Accepting an action cascades the owning
// context's links; the actions of every fired link are pushed in reverse
// so they pop in declaration order. Follow-up transitions requested by
// the object hooks (a media lambda starting its anchors, a proxy
// following its mapped event) are pushed last and pop first.
//
// Termination relies on rejection: a transition that is illegal in the
// current state is dropped without cascading. The quota catches
// documents that keep re-arming each other anyway.
type propagation struct {
	e        *Engine
	stack    []Action
	deferred []Action
	quota    *QuotaEnforcer
	accepted int
}

// evalAction propagates seed to completion and returns the number of
// accepted transitions. Errors abort the propagation; transitions
// already applied stay applied.
func (e *Engine) evalAction(seed Action) (int, error) {
	if seed.Target == nil {
		return 0, NewUnknownEventError("", "action without target")
	}
	p := &propagation{
		e:     e,
		stack: []Action{seed},
		quota: NewQuotaEnforcer(e.maxSteps),
	}
	err := p.run(seed.String())
	e.metrics.observePropagation(p.quota.Current())
	if err != nil {
		slog.Warn("propagation aborted",
			"seed", seed.String(),
			"accepted", p.accepted,
			"error", err)
	}
	return p.accepted, err
}

func (p *propagation) run(seed string) error {
	for len(p.stack) > 0 {
		if err := p.quota.Check(seed); err != nil {
			return NewQuotaError(seed, p.quota.Current(), p.quota.MaxSteps())
		}

		a := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		p.deferred = nil

		ok, err := a.Target.Transition(a.Transition, a.Params, p)
		p.e.metrics.observeTransition(a.Target.typ, a.Transition, ok)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		p.accepted++

		cascaded, err := p.cascade(a)
		if err != nil {
			return err
		}
		p.pushAll(cascaded)
		p.pushAll(p.deferred)
	}
	return nil
}

// pushAll pushes actions so that actions[0] pops first.
func (p *propagation) pushAll(actions []Action) {
	for i := len(actions) - 1; i >= 0; i-- {
		p.stack = append(p.stack, actions[i])
	}
}

// follow requests a transition from inside a hook. It runs after the
// current action's links have been queued.
func (p *propagation) follow(ev *Event, tr ir.Transition, params Params) {
	if ev == nil {
		return
	}
	p.deferred = append(p.deferred, Action{Target: ev, Transition: tr, Params: params})
}

// cascade collects the actions triggered by an accepted transition. For
// every scope of the acting object (its parent, plus the parents of the
// refer nodes aliasing it):
//  1. an occurring context fires its links, and so does its occurring
//     parent context when one of its ports exposes the acting object;
//  2. a switch repeats the transition on proxies mapped onto the event.
//
// Finally a context fires its own links for transitions of its events.
func (p *propagation) cascade(a Action) ([]Action, error) {
	ev, tr := a.Target, a.Transition
	obj := ev.object
	g := p.e.graph

	var out []Action
	for _, scope := range p.e.scopesOf(obj) {
		switch scope.kind {
		case KindContext:
			if scope.Lambda().State() != ir.Occurring {
				continue
			}
			fired, err := p.fire(scope, ev, tr)
			if err != nil {
				return nil, err
			}
			out = append(out, fired...)

			// Links of the enclosing context see the object only through
			// a port of scope, and only one level up.
			outer := g.Parent(scope)
			if outer == nil || outer.kind != KindContext ||
				outer.Lambda().State() != ir.Occurring || !p.e.portReaches(scope, obj) {
				continue
			}
			fired, err = p.fire(outer, ev, tr)
			if err != nil {
				return nil, err
			}
			out = append(out, fired...)
		case KindSwitch:
			out = append(out, p.syncSwitch(scope, ev, tr, a.Params)...)
		}
	}

	if obj.kind == KindContext {
		fired, err := p.fire(obj, ev, tr)
		if err != nil {
			return nil, err
		}
		out = append(out, fired...)
	}
	return out, nil
}

// fire evaluates ctx's compiled links against (ev, tr). A link fires at
// most once per transition even when several of its conditions match.
func (p *propagation) fire(ctx *Object, ev *Event, tr ir.Transition) ([]Action, error) {
	var out []Action
	for _, l := range ctx.links {
		for _, c := range l.matching(ev, tr) {
			ok, err := p.e.eval.Eval(c.Predicate)
			if err != nil {
				return nil, fmt.Errorf("link %s in %s: %w", l.ID, ctx.name, err)
			}
			if !ok {
				continue
			}

			p.e.metrics.observeLinkFiring()
			slog.Debug("link fired",
				"link", l.ID,
				"context", ctx.name,
				"trigger", ev.QualifiedID(),
				"transition", tr.String())

			for _, act := range l.Actions {
				resolved, delay, err := p.e.resolveAction(act)
				if err != nil {
					return nil, fmt.Errorf("link %s in %s: %w", l.ID, ctx.name, err)
				}
				if delay > 0 {
					p.e.addTimer(resolved, delay)
					continue
				}
				out = append(out, resolved)
			}
			break
		}
	}
	return out, nil
}

// syncSwitch keeps the switch's visible events in step with its selected
// child: proxies mapped onto ev repeat the transition, and transitions of
// the selected child's lambda are mirrored on the switch lambda.
func (p *propagation) syncSwitch(sw *Object, ev *Event, tr ir.Transition, params Params) []Action {
	var out []Action
	for _, proxy := range sw.eventOrder {
		if proxy.proxy && proxy.mapped == ev {
			out = append(out, Action{Target: proxy, Transition: tr, Params: params})
		}
	}
	if sel := p.e.graph.Get(sw.selected); sel != nil && sel.Lambda() == ev {
		out = append(out, Action{Target: sw.Lambda(), Transition: tr})
	}
	return out
}

// resolveAction reads "$object.property" parameters at fire time and
// extracts the delay parameter.
func (e *Engine) resolveAction(a Action) (Action, time.Duration, error) {
	if len(a.Params) == 0 {
		return a, 0, nil
	}
	params := make(Params, len(a.Params))
	for k, v := range a.Params {
		r, err := e.eval.Operand(v)
		if err != nil {
			return a, 0, err
		}
		params[k] = r
	}
	a.Params = params

	var delay time.Duration
	if d := params["delay"]; d != "" {
		t, err := ir.ParseTime(d)
		if err != nil {
			return a, 0, fmt.Errorf("action %s: delay: %w", a, err)
		}
		delay = t
	}
	return a, delay, nil
}

// BeforeTransition implements TransitionHooks. Player failures veto the
// transition; they never abort the propagation.
func (p *propagation) BeforeTransition(ev *Event, tr ir.Transition, params Params) (bool, error) {
	obj := ev.object

	if ev.proxy {
		if tr == ir.Start && ev.mapped == nil {
			if obj.selected == NoObject {
				if err := p.e.selectChild(obj); err != nil {
					return false, err
				}
			}
			if ev.mapped == nil {
				slog.Debug("proxy has no mapping", "event", ev.QualifiedID())
				return false, nil
			}
		}
		return true, nil
	}

	if ev.typ == ir.Attribution {
		if tr == ir.Start {
			p.attribute(obj, ev, params)
		}
		return true, nil
	}

	if ev.typ != ir.Presentation || !ev.IsLambda() {
		return true, nil
	}

	switch obj.kind {
	case KindSwitch:
		if tr == ir.Start && obj.selected == NoObject {
			if err := p.e.selectChild(obj); err != nil {
				return false, err
			}
		}
	case KindMedia:
		media := obj.node.(*ir.Media)
		if media.Settings {
			return true, nil
		}
		return p.drivePlayer(obj, media, tr, ev.state, params), nil
	}
	return true, nil
}

// attribute applies an attribution START's value parameter.
func (p *propagation) attribute(obj *Object, ev *Event, params Params) {
	value, ok := params["value"]
	if !ok {
		return
	}
	var dur time.Duration
	if d := params["duration"]; d != "" {
		t, err := ir.ParseTime(d)
		if err != nil {
			slog.Warn("ignoring bad attribution duration", "event", ev.QualifiedID(), "error", err)
		} else {
			dur = t
		}
	}
	if err := p.e.assign(obj, ev.anchor.ID, value, dur); err != nil {
		slog.Warn("player rejected property", "event", ev.QualifiedID(), "error", err)
	}
}

// drivePlayer moves the player along with the lambda. A START that finds
// the lambda paused resumes the player where it stopped.
func (p *propagation) drivePlayer(obj *Object, media *ir.Media, tr ir.Transition, from ir.EventState, params Params) bool {
	if tr == ir.Start && from == ir.Paused && obj.player != nil {
		if err := obj.player.Resume(); err != nil {
			slog.Warn("player refused to resume", "object", obj.name, "error", err)
			return false
		}
		return true
	}
	if tr == ir.Start {
		if obj.player == nil {
			player, err := p.e.players.NewPlayer(media)
			if err != nil {
				slog.Warn("cannot create player", "object", obj.name, "error", err)
				return false
			}
			obj.player = player
			for _, name := range slices.Sorted(maps.Keys(obj.properties)) {
				if err := player.SetProperty(name, obj.properties[name], 0); err != nil {
					slog.Warn("player rejected property", "object", obj.name, "name", name, "error", err)
				}
			}
		}
		offset, err := offsetParam(params)
		if err != nil {
			slog.Warn("bad start offset", "object", obj.name, "error", err)
			return false
		}
		if err := obj.player.Prepare(offset); err != nil {
			slog.Warn("player refused to prepare", "object", obj.name, "error", err)
			return false
		}
		if err := obj.player.Start(); err != nil {
			slog.Warn("player refused to start", "object", obj.name, "error", err)
			return false
		}
		return true
	}

	if obj.player == nil {
		return true
	}
	var err error
	switch tr {
	case ir.Pause:
		err = obj.player.Pause()
	case ir.Resume:
		err = obj.player.Resume()
	case ir.Stop, ir.Abort:
		err = obj.player.Stop()
	}
	if err != nil {
		slog.Warn("player transition failed", "object", obj.name, "transition", tr.String(), "error", err)
	}
	return true
}

func offsetParam(params Params) (time.Duration, error) {
	s, ok := params["offset"]
	if !ok || s == "" {
		return 0, nil
	}
	return ir.ParseTime(s)
}

// AfterTransition implements TransitionHooks.
func (p *propagation) AfterTransition(ev *Event, tr ir.Transition, from ir.EventState, params Params) error {
	e := p.e
	obj := ev.object

	e.record(ev, tr, from)
	slog.Debug("transition",
		"event", ev.QualifiedID(),
		"transition", tr.String(),
		"from", from.String(),
		"to", ev.state.String())

	if ev.typ == ir.Presentation && ev.IsLambda() && tr == ir.Start {
		if parent := e.graph.Parent(obj); parent != nil {
			parent.childStarted = true
		}
	}

	if ev.proxy {
		p.follow(ev.mapped, tr, params)
		return nil
	}

	switch ev.typ {
	case ir.Attribution:
		if tr == ir.Start {
			p.follow(ev, ir.Stop, nil)
		}
		return nil
	case ir.Selection:
		return nil
	}

	switch obj.kind {
	case KindMedia:
		p.afterMedia(obj, ev, tr, from, params)
	case KindContext:
		if ev.IsLambda() {
			return p.afterContext(obj, tr, from, params)
		}
	case KindSwitch:
		if ev.IsLambda() {
			p.afterSwitch(obj, tr, params)
		}
	}
	return nil
}

func (p *propagation) afterMedia(obj *Object, ev *Event, tr ir.Transition, from ir.EventState, params Params) {
	lambda := obj.Lambda()

	if !ev.IsLambda() {
		if tr == ir.Start && lambda.State() == ir.Sleeping {
			p.follow(lambda, ir.Start, Params{"offset": ev.begin.String()})
		}
		return
	}

	s := obj.schedule
	if s == nil {
		return
	}

	if tr == ir.Start && from == ir.Paused {
		tr = ir.Resume
	}

	switch tr {
	case ir.Start:
		offset, _ := offsetParam(params)
		obj.mediaTime = offset
		s.Prepare(offset == 0, offset)
		for _, t := range s.Advance(offset) {
			a := scheduledAction(t)
			p.follow(a.Target, a.Transition, nil)
		}
	case ir.Pause:
		for _, other := range obj.eventOrder {
			if other != ev && other.typ == ir.Presentation && other.state == ir.Occurring {
				p.follow(other, tr, nil)
			}
		}
	case ir.Resume:
		for _, other := range obj.eventOrder {
			if other != ev && other.typ == ir.Presentation && other.state == ir.Paused {
				p.follow(other, tr, nil)
			}
		}
	case ir.Stop, ir.Abort:
		for _, other := range s.Finish(obj.mediaTime) {
			if other != ev {
				p.follow(other, tr, nil)
			}
		}
		for _, other := range obj.eventOrder {
			if other.typ == ir.Presentation && other.anchor.Kind == ir.AnchorLabel && other.state != ir.Sleeping {
				p.follow(other, tr, nil)
			}
		}
		s.Reset()
		obj.mediaTime = 0
	}
}

func (p *propagation) afterContext(obj *Object, tr ir.Transition, from ir.EventState, params Params) error {
	if tr == ir.Start && from == ir.Paused {
		tr = ir.Resume
	}
	if tr == ir.Start {
		obj.childStarted = false
		ctx := obj.node.(*ir.Context)
		for _, port := range ctx.Ports {
			ev, err := p.e.portEvent(obj, port)
			if err != nil {
				return err
			}
			p.follow(ev, ir.Start, nil)
		}
		return nil
	}
	for _, child := range p.e.graph.Children(obj) {
		p.follow(child.Lambda(), tr, nil)
	}
	return nil
}

func (p *propagation) afterSwitch(obj *Object, tr ir.Transition, params Params) {
	sel := p.e.graph.Get(obj.selected)
	switch tr {
	case ir.Start, ir.Pause, ir.Resume:
		if sel != nil {
			p.follow(sel.Lambda(), tr, params)
		}
	case ir.Stop, ir.Abort:
		for _, proxy := range obj.eventOrder {
			if proxy.proxy && proxy.state != ir.Sleeping {
				p.follow(proxy, tr, nil)
			}
		}
		if sel != nil {
			p.follow(sel.Lambda(), tr, nil)
		}
		p.e.deselect(obj, false)
	}
}
