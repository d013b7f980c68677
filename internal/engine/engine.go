package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// DefaultMaxSteps is the default maximum number of actions one
// propagation may pop. It stops documents whose links re-arm each other
// forever.
const DefaultMaxSteps = 10000

// Observer receives every accepted transition, in order.
type Observer interface {
	OnTransition(rec ir.TransitionRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec ir.TransitionRecord)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(rec ir.TransitionRecord) { f(rec) }

// Engine runs one document.
//
// All state mutation happens on the goroutine calling the driver methods
// (Start, Tick, PostAction, PostKey, SetProperty, Reselect) or Run.
// Enqueue is the only method safe to call from other goroutines; queued
// signals are applied on the next tick.
type Engine struct {
	doc     *ir.Document
	graph   *Graph
	eval    *Evaluator
	players PlayerFactory
	rules   RuleAdaptor
	clock   SeqClock
	metrics *Metrics
	queue   *signalQueue

	observers []Observer
	maxSteps  int

	now      time.Duration
	timers   []timer
	timerSeq int
	started  bool
}

type timer struct {
	due    time.Duration
	seq    int
	action Action
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps sets the maximum actions per propagation.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithPlayerFactory sets how media players are created.
// Default: NullPlayerFactory.
func WithPlayerFactory(f PlayerFactory) Option {
	return func(e *Engine) {
		e.players = f
	}
}

// WithRuleAdaptor sets the switch child selector.
// Default: DefaultRuleAdaptor.
func WithRuleAdaptor(r RuleAdaptor) Option {
	return func(e *Engine) {
		e.rules = r
	}
}

// WithObserver adds a transition observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithMetrics records engine activity into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the logical clock used to stamp transition records.
func WithClock(c SeqClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine for doc. No object exists until Start or
// Instantiate is called.
func New(doc *ir.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		graph:    newGraph(),
		players:  NullPlayerFactory,
		rules:    DefaultRuleAdaptor{},
		clock:    NewClock(),
		queue:    newSignalQueue(),
		maxSteps: DefaultMaxSteps,
	}
	e.eval = NewEvaluator(e.lookupProperty)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document returns the document being played.
func (e *Engine) Document() *ir.Document { return e.doc }

// Graph returns the object arena.
func (e *Engine) Graph() *Graph { return e.graph }

// Now returns the engine time of the last tick.
func (e *Engine) Now() time.Duration { return e.now }

// PendingDelayed returns the number of delayed actions not yet fired.
func (e *Engine) PendingDelayed() int { return len(e.timers) }

// Start instantiates the root context (and the settings node) and starts
// the root lambda. It returns the number of accepted transitions.
func (e *Engine) Start() (int, error) {
	root, err := e.obtain(e.doc.Root)
	if err != nil {
		return 0, fmt.Errorf("instantiate root: %w", err)
	}
	if e.doc.Settings != nil {
		if _, err := e.obtain(e.doc.Settings); err != nil {
			return 0, fmt.Errorf("instantiate settings: %w", err)
		}
	}
	e.started = true
	slog.Info("document starting", "document", e.doc.ID, "root", root.name)
	return e.evalAction(Action{Target: root.Lambda(), Transition: ir.Start})
}

// Finished reports whether the document was started and its root lambda
// is Sleeping again.
func (e *Engine) Finished() bool {
	if !e.started {
		return false
	}
	root, ok := e.graph.Lookup(e.doc.Root.ID())
	return ok && root.Lambda().State() == ir.Sleeping
}

// Instantiate creates the runtime object for a node (and its ancestors),
// compiling every link it completes.
func (e *Engine) Instantiate(nodeID string) (*Object, error) {
	n, ok := e.doc.Lookup(nodeID)
	if !ok {
		return nil, NewUnknownEventError(nodeID, "no such node")
	}
	return e.obtain(n)
}

// PostAction applies a transition to the event named by a qualified id
// and propagates it. It returns the number of accepted transitions.
func (e *Engine) PostAction(target string, tr ir.Transition, params Params) (int, error) {
	ev, err := e.eventByRef(target)
	if err != nil {
		return 0, err
	}
	return e.evalAction(Action{Target: ev, Transition: tr, Params: params})
}

// PostKey starts (pressed) or stops (released) every selection event
// whose key matches on objects whose lambda is Occurring. An event with
// an empty key matches any key.
func (e *Engine) PostKey(key string, pressed bool) (int, error) {
	tr := ir.Start
	if !pressed {
		tr = ir.Stop
	}
	total := 0
	objects := append([]*Object(nil), e.graph.Objects()...)
	for _, obj := range objects {
		lambda := obj.Lambda()
		if lambda == nil || lambda.State() != ir.Occurring {
			continue
		}
		events := append([]*Event(nil), obj.eventOrder...)
		for _, ev := range events {
			if ev.typ != ir.Selection || ev.proxy {
				continue
			}
			if ev.key != "" && ev.key != key {
				continue
			}
			n, err := e.evalAction(Action{Target: ev, Transition: tr, Params: Params{"key": key}})
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Property reads a property. Objects not yet instantiated answer with
// their declared default. A missing property reads as "".
func (e *Engine) Property(object, name string) (string, error) {
	v, _, err := e.lookupProperty(object, name)
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetProperty assigns a property directly, forwarding it to the player.
// No attribution event fires.
func (e *Engine) SetProperty(object, name, value string, dur time.Duration) error {
	obj, err := e.Instantiate(object)
	if err != nil {
		return err
	}
	return e.assign(obj, name, value, dur)
}

// Reselect drops a switch's current selection, forcing the previous
// child's events and the proxies mapped onto them to Sleeping, then asks
// the rule adaptor again.
func (e *Engine) Reselect(switchID string) error {
	obj, err := e.Instantiate(switchID)
	if err != nil {
		return err
	}
	if obj.kind != KindSwitch {
		return NewUnknownEventError(switchID, "not a switch")
	}
	e.deselect(obj, true)
	return e.selectChild(obj)
}

// Event finds an existing event by qualified id without creating it.
func (e *Engine) Event(qualifiedID string) (*Event, bool) {
	ref, err := ir.ParseEventRef(qualifiedID)
	if err != nil {
		return nil, false
	}
	obj, ok := e.graph.Lookup(ref.Object)
	if !ok {
		return nil, false
	}
	return obj.Event(ref.Type, ref.Interface, ref.Key)
}

// Enqueue submits a signal for the next tick.
// Thread-safe: may be called from any goroutine.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(s Signal) bool {
	return e.queue.Enqueue(s)
}

// Stop closes the signal queue; Run returns on its next iteration.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Tick advances engine time to total; diff is the time since the previous
// tick. In order it applies queued signals, player natural ends, due
// delayed actions, media schedules and context natural ends. Errors from
// individual propagations are joined; the tick still completes.
func (e *Engine) Tick(total, diff time.Duration) error {
	e.now = total
	e.metrics.observeTick()

	var errs []error
	errs = append(errs, e.applySignals()...)

	for _, obj := range e.mediaObjects() {
		if obj.player == nil || obj.Lambda().State() == ir.Sleeping {
			continue
		}
		if obj.player.NaturalEnd() {
			slog.Debug("natural end", "object", obj.name)
			if _, err := e.evalAction(Action{Target: obj.Lambda(), Transition: ir.Stop}); err != nil {
				errs = append(errs, err)
			}
		}
	}

	errs = append(errs, e.fireTimers()...)

	for _, obj := range e.mediaObjects() {
		if obj.schedule == nil || obj.Lambda().State() != ir.Occurring {
			continue
		}
		obj.mediaTime += diff
		errs = append(errs, e.advance(obj)...)
	}

	errs = append(errs, e.endIdleContexts()...)
	return errors.Join(errs...)
}

// Run drives the engine in real time, ticking every interval until the
// document finishes, ctx is cancelled or Stop is called. Enqueued signals
// are applied at the start of each tick, never between ticks.
//
// ERROR HANDLING: a failed tick is logged and the loop continues; only
// the propagation that failed is cut short.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	slog.Info("engine running", "document", e.doc.ID, "tick", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	begin := time.Now()
	last := begin
	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping", "reason", "context cancelled")
			return ctx.Err()
		case _, ok := <-e.queue.Wait():
			// Queued signals wait for the tick; only a closed queue matters here.
			if !ok {
				slog.Info("engine stopping", "reason", "stopped")
				return nil
			}
		case now := <-ticker.C:
			if err := e.Tick(now.Sub(begin), now.Sub(last)); err != nil {
				slog.Error("tick failed", "error", err)
			}
			last = now
			if e.Finished() {
				slog.Info("document finished", "document", e.doc.ID)
				return nil
			}
		}
	}
}

func (e *Engine) applySignals() []error {
	var errs []error
	for _, s := range e.queue.Drain() {
		var err error
		switch s.Kind {
		case SignalAction:
			_, err = e.PostAction(s.Target, s.Transition, s.Params)
		case SignalKey:
			_, err = e.PostKey(s.Key, s.Pressed)
		case SignalProperty:
			err = e.SetProperty(s.Target, s.Name, s.Value, 0)
		default:
			slog.Warn("dropping unknown signal", "kind", int(s.Kind))
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Engine) mediaObjects() []*Object {
	var out []*Object
	for _, obj := range e.graph.Objects() {
		if obj.kind == KindMedia {
			out = append(out, obj)
		}
	}
	return out
}

// advance drains the schedule of obj up to its media time. Transitions
// left over after the schedule was repositioned (the media stopped
// mid-batch) are dropped.
func (e *Engine) advance(obj *Object) []error {
	var errs []error
	gen := obj.schedule.Generation()
	for _, t := range obj.schedule.Advance(obj.mediaTime) {
		if obj.schedule.Generation() != gen {
			break
		}
		if _, err := e.evalAction(scheduledAction(t)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func scheduledAction(t *ScheduledTransition) Action {
	tr := ir.Start
	if t.Kind == EndTransition {
		tr = ir.Stop
	}
	return Action{Target: t.Event, Transition: tr}
}

// endIdleContexts stops every occurring context whose children ran and
// are all Sleeping again. Deepest contexts go first so an inner end can
// cascade outward within one tick.
func (e *Engine) endIdleContexts() []error {
	var errs []error
	objects := e.graph.Objects()
	for i := len(objects) - 1; i >= 0; i-- {
		obj := objects[i]
		if obj.kind != KindContext || !obj.childStarted || obj.Lambda().State() != ir.Occurring {
			continue
		}
		awake := false
		for _, child := range e.graph.Children(obj) {
			if l := child.Lambda(); l != nil && l.State() != ir.Sleeping {
				awake = true
				break
			}
		}
		if awake {
			continue
		}
		slog.Debug("context idle", "object", obj.name)
		if _, err := e.evalAction(Action{Target: obj.Lambda(), Transition: ir.Stop}); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Engine) addTimer(a Action, delay time.Duration) {
	e.timerSeq++
	e.timers = append(e.timers, timer{due: e.now + delay, seq: e.timerSeq, action: a})
	sort.SliceStable(e.timers, func(i, j int) bool {
		if e.timers[i].due != e.timers[j].due {
			return e.timers[i].due < e.timers[j].due
		}
		return e.timers[i].seq < e.timers[j].seq
	})
	e.metrics.setDelayed(len(e.timers))
	slog.Debug("action delayed", "action", a.String(), "due", e.now+delay)
}

func (e *Engine) fireTimers() []error {
	var errs []error
	for len(e.timers) > 0 && e.timers[0].due <= e.now {
		t := e.timers[0]
		e.timers = e.timers[1:]
		if _, err := e.evalAction(t.action); err != nil {
			errs = append(errs, err)
		}
	}
	e.metrics.setDelayed(len(e.timers))
	return errs
}

// lookupProperty backs predicate operands and Property.
func (e *Engine) lookupProperty(object, name string) (string, bool, error) {
	if obj, ok := e.graph.Lookup(object); ok {
		v, found := obj.Property(name)
		return v, found, nil
	}
	n, ok := e.doc.Lookup(object)
	if !ok {
		return "", false, NewUnresolvedReferenceError(object, name)
	}
	concrete, err := e.doc.Deref(n)
	if err != nil {
		return "", false, NewDocumentError(object, err)
	}
	for _, p := range concrete.Properties() {
		if p.ID == name {
			return p.Value, true, nil
		}
	}
	return "", false, nil
}

// assign stores a property and forwards it to the object's player.
func (e *Engine) assign(obj *Object, name, value string, dur time.Duration) error {
	obj.properties[name] = value
	if obj.player != nil {
		if err := obj.player.SetProperty(name, value, dur); err != nil {
			return fmt.Errorf("set %s.%s: %w", obj.name, name, err)
		}
	}
	slog.Debug("property set", "object", obj.name, "name", name, "value", value)
	return nil
}

// eventByRef resolves a qualified id through ports and refers,
// instantiating the object and creating the event when needed.
func (e *Engine) eventByRef(qualifiedID string) (*Event, error) {
	ref, err := ir.ParseEventRef(qualifiedID)
	if err != nil {
		return nil, NewUnknownEventError(qualifiedID, err.Error())
	}
	res, err := e.doc.Resolve(ref.Object, ref.Interface)
	if err != nil {
		return nil, NewUnknownEventError(qualifiedID, err.Error())
	}
	obj, err := e.obtain(res.Target)
	if err != nil {
		return nil, err
	}
	ev, err := e.eventFor(obj, res.Anchor, ref.Type, ref.Key)
	if err != nil {
		return nil, NewUnknownEventError(qualifiedID, err.Error())
	}
	return ev, nil
}

func (e *Engine) record(ev *Event, tr ir.Transition, from ir.EventState) {
	rec := ir.TransitionRecord{
		Seq:        e.clock.Next(),
		Time:       e.now.Milliseconds(),
		Event:      ev.QualifiedID(),
		Object:     ev.object.name,
		Type:       ev.typ,
		Transition: tr,
		From:       from,
		To:         ev.state,
	}
	for _, o := range e.observers {
		o.OnTransition(rec)
	}
}
