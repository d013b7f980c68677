package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hyperplay/internal/ir"
)

// DocumentPath is the top-level field holding a document.
const DocumentPath = "document"

// CompileSource compiles CUE source text holding a top-level document
// field. filename only labels positions in errors.
func CompileSource(filename string, src []byte) (*ir.Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	doc := v.LookupPath(cue.ParsePath(DocumentPath))
	if !doc.Exists() {
		return nil, &CompileError{Field: DocumentPath, Message: "no document field found"}
	}
	return CompileDocument(doc)
}

// CompileDocument parses a CUE document struct into an indexed ir.Document.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// Connectors are expanded here: every link bind is resolved against its
// connector role and $-parameters are substituted, so the engine only sees
// concrete binds.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`document: { id: "demo", body: {...} }`)
//	doc, err := CompileDocument(v.LookupPath(cue.ParsePath("document")))
func CompileDocument(v cue.Value) (*ir.Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	id, err := requiredString(v, "id")
	if err != nil {
		return nil, err
	}

	c := &docCompiler{connectors: make(map[string]*connector)}
	if err := c.compileConnectors(v.LookupPath(cue.ParsePath("connectors"))); err != nil {
		return nil, err
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{Field: "body", Message: "body is required", Pos: v.Pos()}
	}
	rootID, err := optionalString(bodyVal, "id")
	if err != nil {
		return nil, err
	}
	if rootID == "" {
		rootID = id
	}
	root, err := c.compileContext(rootID, bodyVal, "body")
	if err != nil {
		return nil, err
	}

	settingsVal := v.LookupPath(cue.ParsePath("settings"))
	if settingsVal.Exists() {
		settings, err := compileSettings(settingsVal)
		if err != nil {
			return nil, err
		}
		root.Children = append([]ir.Node{settings}, root.Children...)
	}

	doc, err := ir.NewDocument(id, root)
	if err != nil {
		return nil, &CompileError{Field: "document", Message: err.Error(), Pos: v.Pos()}
	}
	return doc, nil
}

// roleSpec is one condition or action role of a connector, before params
// are substituted.
type roleSpec struct {
	Role       string
	EventType  string
	Transition string
	Key        string
	Params     map[string]string
	Pos        token.Pos
}

type connector struct {
	Name       string
	Conditions []roleSpec
	Actions    []roleSpec
	Predicate  *ir.Predicate
}

func (c *connector) condition(role string) (roleSpec, bool) {
	for _, r := range c.Conditions {
		if r.Role == role {
			return r, true
		}
	}
	return roleSpec{}, false
}

func (c *connector) action(role string) (roleSpec, bool) {
	for _, r := range c.Actions {
		if r.Role == role {
			return r, true
		}
	}
	return roleSpec{}, false
}

type docCompiler struct {
	connectors map[string]*connector
}

// actionParamNames lists the role fields copied into action params.
var actionParamNames = []string{"value", "duration", "delay", "offset"}

func (c *docCompiler) compileConnectors(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		cv := iter.Value()
		conn := &connector{Name: name}

		conn.Conditions, err = compileRoles(cv.LookupPath(cue.ParsePath("conditions")), "connectors."+name+".conditions", true)
		if err != nil {
			return err
		}
		conn.Actions, err = compileRoles(cv.LookupPath(cue.ParsePath("actions")), "connectors."+name+".actions", false)
		if err != nil {
			return err
		}
		if len(conn.Conditions) == 0 {
			return &CompileError{Field: "connectors." + name, Message: "connector needs at least one condition role", Pos: cv.Pos()}
		}
		if len(conn.Actions) == 0 {
			return &CompileError{Field: "connectors." + name, Message: "connector needs at least one action role", Pos: cv.Pos()}
		}

		predVal := cv.LookupPath(cue.ParsePath("predicate"))
		if predVal.Exists() {
			conn.Predicate, err = compilePredicate(predVal, "connectors."+name+".predicate")
			if err != nil {
				return err
			}
		}
		c.connectors[name] = conn
	}
	return nil
}

func compileRoles(v cue.Value, field string, conditions bool) ([]roleSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of roles", Pos: v.Pos()}
	}
	var roles []roleSpec
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		f := fmt.Sprintf("%s[%d]", field, i)
		role, err := requiredString(rv, "role")
		if err != nil {
			return nil, prefixed(err, f)
		}
		if seen[role] {
			return nil, &CompileError{Field: f, Message: fmt.Sprintf("duplicate role %q", role), Pos: rv.Pos()}
		}
		seen[role] = true

		spec := roleSpec{Role: role, Pos: rv.Pos(), Params: make(map[string]string)}
		if spec.EventType, err = optionalString(rv, "eventType"); err != nil {
			return nil, prefixed(err, f)
		}
		if spec.Transition, err = optionalString(rv, "transition"); err != nil {
			return nil, prefixed(err, f)
		}
		if spec.Transition == "" {
			return nil, &CompileError{Field: f + ".transition", Message: "transition is required", Pos: rv.Pos()}
		}
		if conditions {
			if spec.Key, err = optionalScalar(rv, "key"); err != nil {
				return nil, prefixed(err, f)
			}
		} else {
			for _, name := range actionParamNames {
				val, err := optionalScalar(rv, name)
				if err != nil {
					return nil, prefixed(err, f)
				}
				if val != "" {
					spec.Params[name] = val
				}
			}
		}
		roles = append(roles, spec)
	}
	return roles, nil
}

func compileSettings(v cue.Value) (*ir.Media, error) {
	id, err := optionalString(v, "id")
	if err != nil {
		return nil, prefixed(err, "settings")
	}
	if id == "" {
		id = ir.SettingsID
	}
	props, err := compileProperties(v.LookupPath(cue.ParsePath("properties")), "settings.properties")
	if err != nil {
		return nil, err
	}
	return &ir.Media{
		Base:     ir.Base{NodeID: id, Anchors: props},
		MimeType: ir.SettingsMimeType,
		Settings: true,
	}, nil
}

func (c *docCompiler) compileNode(id string, v cue.Value, field string) (ir.Node, error) {
	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, prefixed(err, field)
	}
	switch kind {
	case "", "media":
		return compileMedia(id, v, field)
	case "context":
		return c.compileContext(id, v, field)
	case "switch":
		return c.compileSwitch(id, v, field)
	case "refer":
		target, err := requiredString(v, "refer")
		if err != nil {
			return nil, prefixed(err, field)
		}
		return &ir.Refer{Base: ir.Base{NodeID: id}, Target: target}, nil
	default:
		return nil, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown node kind %q (want media, context, switch or refer)", kind),
			Pos:     v.Pos(),
		}
	}
}

func compileMedia(id string, v cue.Value, field string) (*ir.Media, error) {
	m := &ir.Media{Base: ir.Base{NodeID: id}}
	var err error
	if m.Src, err = optionalString(v, "src"); err != nil {
		return nil, prefixed(err, field)
	}
	if m.MimeType, err = optionalString(v, "type"); err != nil {
		return nil, prefixed(err, field)
	}
	settings := v.LookupPath(cue.ParsePath("settings"))
	if settings.Exists() {
		if m.Settings, err = settings.Bool(); err != nil {
			return nil, &CompileError{Field: field + ".settings", Message: "settings must be a bool", Pos: settings.Pos()}
		}
	}
	switch {
	case m.Settings:
		m.MimeType = ir.SettingsMimeType
	case m.MimeType == "" && m.Src != "":
		m.MimeType = ir.MimeTypeFor(m.Src)
	case m.MimeType == "":
		m.MimeType = ir.DefaultMimeType
	}

	durVal := v.LookupPath(cue.ParsePath("dur"))
	if durVal.Exists() {
		if m.Duration, err = timeValue(durVal, field+".dur"); err != nil {
			return nil, err
		}
	}

	areas := v.LookupPath(cue.ParsePath("areas"))
	if areas.Exists() {
		iter, err := areas.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			a, err := compileArea(iter.Label(), iter.Value(), field+".areas."+iter.Label())
			if err != nil {
				return nil, err
			}
			m.Anchors = append(m.Anchors, a)
		}
	}

	labels := v.LookupPath(cue.ParsePath("labels"))
	if labels.Exists() {
		iter, err := labels.List()
		if err != nil {
			return nil, &CompileError{Field: field + ".labels", Message: "expected a list of label names", Pos: labels.Pos()}
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{Field: field + ".labels", Message: "label names must be strings", Pos: iter.Value().Pos()}
			}
			m.Anchors = append(m.Anchors, ir.Anchor{ID: name, Kind: ir.AnchorLabel, End: ir.TimeNone})
		}
	}

	props, err := compileProperties(v.LookupPath(cue.ParsePath("properties")), field+".properties")
	if err != nil {
		return nil, err
	}
	m.Anchors = append(m.Anchors, props...)
	return m, nil
}

func compileArea(id string, v cue.Value, field string) (ir.Anchor, error) {
	a := ir.Anchor{ID: id, Kind: ir.AnchorInterval, End: ir.TimeNone}
	var err error
	if b := v.LookupPath(cue.ParsePath("begin")); b.Exists() {
		if a.Begin, err = timeValue(b, field+".begin"); err != nil {
			return a, err
		}
	}
	if e := v.LookupPath(cue.ParsePath("end")); e.Exists() {
		if a.End, err = timeValue(e, field+".end"); err != nil {
			return a, err
		}
	}
	return a, nil
}

func compileProperties(v cue.Value, field string) ([]ir.Anchor, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a struct of properties", Pos: v.Pos()}
	}
	var props []ir.Anchor
	for iter.Next() {
		val, err := scalarString(iter.Value())
		if err != nil {
			return nil, &CompileError{Field: field + "." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
		props = append(props, ir.Anchor{ID: iter.Label(), Kind: ir.AnchorProperty, Value: val})
	}
	return props, nil
}

func (c *docCompiler) compileChildren(v cue.Value, field string) ([]ir.Node, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a struct of child nodes", Pos: v.Pos()}
	}
	var children []ir.Node
	for iter.Next() {
		n, err := c.compileNode(iter.Label(), iter.Value(), field+"."+iter.Label())
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return children, nil
}

func (c *docCompiler) compileContext(id string, v cue.Value, field string) (*ir.Context, error) {
	ctx := &ir.Context{Base: ir.Base{NodeID: id}}
	var err error
	if ctx.Children, err = c.compileChildren(v.LookupPath(cue.ParsePath("children")), field+".children"); err != nil {
		return nil, err
	}
	if ctx.Anchors, err = compileProperties(v.LookupPath(cue.ParsePath("properties")), field+".properties"); err != nil {
		return nil, err
	}

	ports := v.LookupPath(cue.ParsePath("ports"))
	if ports.Exists() {
		iter, err := ports.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			pf := field + ".ports." + iter.Label()
			comp, err := requiredString(iter.Value(), "component")
			if err != nil {
				return nil, prefixed(err, pf)
			}
			iface, err := optionalString(iter.Value(), "interface")
			if err != nil {
				return nil, prefixed(err, pf)
			}
			ctx.Ports = append(ctx.Ports, ir.Port{ID: iter.Label(), Component: comp, Interface: iface})
		}
	}

	links := v.LookupPath(cue.ParsePath("links"))
	if links.Exists() {
		iter, err := links.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			l, err := c.compileLink(iter.Label(), iter.Value(), field+".links."+iter.Label())
			if err != nil {
				return nil, err
			}
			ctx.Links = append(ctx.Links, l)
		}
	}
	return ctx, nil
}

func (c *docCompiler) compileSwitch(id string, v cue.Value, field string) (*ir.Switch, error) {
	sw := &ir.Switch{Base: ir.Base{NodeID: id}}
	var err error
	if sw.Children, err = c.compileChildren(v.LookupPath(cue.ParsePath("children")), field+".children"); err != nil {
		return nil, err
	}
	if sw.Default, err = optionalString(v, "default"); err != nil {
		return nil, prefixed(err, field)
	}

	rules := v.LookupPath(cue.ParsePath("rules"))
	if rules.Exists() {
		iter, err := rules.List()
		if err != nil {
			return nil, &CompileError{Field: field + ".rules", Message: "expected a list of rules", Pos: rules.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			rf := fmt.Sprintf("%s.rules[%d]", field, i)
			comp, err := requiredString(iter.Value(), "component")
			if err != nil {
				return nil, prefixed(err, rf)
			}
			when := iter.Value().LookupPath(cue.ParsePath("when"))
			if !when.Exists() {
				return nil, &CompileError{Field: rf + ".when", Message: "rule needs a when predicate", Pos: iter.Value().Pos()}
			}
			pred, err := compilePredicate(when, rf+".when")
			if err != nil {
				return nil, err
			}
			sw.Rules = append(sw.Rules, ir.Rule{Component: comp, Predicate: pred})
		}
	}

	ports := v.LookupPath(cue.ParsePath("switchPorts"))
	if ports.Exists() {
		iter, err := ports.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			pf := field + ".switchPorts." + iter.Label()
			sp := ir.SwitchPort{ID: iter.Label()}
			maps, err := iter.Value().List()
			if err != nil {
				return nil, &CompileError{Field: pf, Message: "expected a list of mappings", Pos: iter.Value().Pos()}
			}
			for j := 0; maps.Next(); j++ {
				mf := fmt.Sprintf("%s[%d]", pf, j)
				comp, err := requiredString(maps.Value(), "component")
				if err != nil {
					return nil, prefixed(err, mf)
				}
				iface, err := optionalString(maps.Value(), "interface")
				if err != nil {
					return nil, prefixed(err, mf)
				}
				sp.Mappings = append(sp.Mappings, ir.Mapping{Component: comp, Interface: iface})
			}
			sw.SwitchPorts = append(sw.SwitchPorts, sp)
		}
	}
	return sw, nil
}

// compileLink expands a link through its connector. Each bind names a
// connector role; condition roles become conditions, action roles become
// actions. A role may be bound several times.
func (c *docCompiler) compileLink(id string, v cue.Value, field string) (*ir.Link, error) {
	connName, err := requiredString(v, "connector")
	if err != nil {
		return nil, prefixed(err, field)
	}
	conn, ok := c.connectors[connName]
	if !ok {
		return nil, &CompileError{Field: field + ".connector", Message: fmt.Sprintf("unknown connector %q", connName), Pos: v.Pos()}
	}
	linkParams, err := compileParams(v.LookupPath(cue.ParsePath("params")), field+".params")
	if err != nil {
		return nil, err
	}

	binds := v.LookupPath(cue.ParsePath("binds"))
	if !binds.Exists() {
		return nil, &CompileError{Field: field + ".binds", Message: "link needs binds", Pos: v.Pos()}
	}
	iter, err := binds.List()
	if err != nil {
		return nil, &CompileError{Field: field + ".binds", Message: "expected a list of binds", Pos: binds.Pos()}
	}

	link := &ir.Link{ID: id}
	for i := 0; iter.Next(); i++ {
		bv := iter.Value()
		bf := fmt.Sprintf("%s.binds[%d]", field, i)
		role, err := requiredString(bv, "role")
		if err != nil {
			return nil, prefixed(err, bf)
		}
		comp, err := requiredString(bv, "component")
		if err != nil {
			return nil, prefixed(err, bf)
		}
		iface, err := optionalString(bv, "interface")
		if err != nil {
			return nil, prefixed(err, bf)
		}
		bindParams, err := compileParams(bv.LookupPath(cue.ParsePath("params")), bf+".params")
		if err != nil {
			return nil, err
		}
		sub := substituter{bindParams: bindParams, link: linkParams, field: bf, pos: bv.Pos()}

		if spec, ok := conn.condition(role); ok {
			b, err := sub.bind(spec, comp, iface)
			if err != nil {
				return nil, err
			}
			if b.Key, err = sub.resolve(spec.Key); err != nil {
				return nil, err
			}
			b.Predicate = conn.Predicate
			link.Conditions = append(link.Conditions, b)
			continue
		}
		if spec, ok := conn.action(role); ok {
			b, err := sub.bind(spec, comp, iface)
			if err != nil {
				return nil, err
			}
			for name, raw := range spec.Params {
				val, err := sub.resolve(raw)
				if err != nil {
					return nil, err
				}
				if b.Params == nil {
					b.Params = make(map[string]string)
				}
				b.Params[name] = val
			}
			link.Actions = append(link.Actions, b)
			continue
		}
		return nil, &CompileError{
			Field:   bf + ".role",
			Message: fmt.Sprintf("role %q is not declared by connector %q", role, connName),
			Pos:     bv.Pos(),
		}
	}
	return link, nil
}

// substituter resolves $-prefixed role values: bind params first, then
// link params.
type substituter struct {
	bindParams map[string]string
	link       map[string]string
	field      string
	pos        token.Pos
}

func (s substituter) resolve(raw string) (string, error) {
	name, ok := strings.CutPrefix(raw, "$")
	if !ok {
		return raw, nil
	}
	if v, ok := s.bindParams[name]; ok {
		return v, nil
	}
	if v, ok := s.link[name]; ok {
		return v, nil
	}
	return "", &CompileError{
		Field:   s.field,
		Message: fmt.Sprintf("parameter %q is not bound by the bind or its link", name),
		Pos:     s.pos,
	}
}

func (s substituter) bind(spec roleSpec, component, iface string) (ir.Bind, error) {
	b := ir.Bind{Component: component, Interface: iface}
	evType, err := s.resolve(spec.EventType)
	if err != nil {
		return b, err
	}
	if evType == "" {
		b.EventType = ir.Presentation
	} else if b.EventType, err = ir.ParseEventType(evType); err != nil {
		return b, &CompileError{Field: s.field, Message: err.Error(), Pos: spec.Pos}
	}
	tr, err := s.resolve(spec.Transition)
	if err != nil {
		return b, err
	}
	if b.Transition, err = ir.ParseTransition(tr); err != nil {
		return b, &CompileError{Field: s.field, Message: err.Error(), Pos: spec.Pos}
	}
	return b, nil
}

func compileParams(v cue.Value, field string) (map[string]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a struct of parameters", Pos: v.Pos()}
	}
	params := make(map[string]string)
	for iter.Next() {
		val, err := scalarString(iter.Value())
		if err != nil {
			return nil, &CompileError{Field: field + "." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
		params[iter.Label()] = val
	}
	return params, nil
}

// compilePredicate reads a predicate tree. Not nodes are kept so that
// validation can report them with their position.
func compilePredicate(v cue.Value, field string) (*ir.Predicate, error) {
	if b, err := v.Bool(); err == nil {
		if b {
			return ir.True(), nil
		}
		return ir.False(), nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "predicate must be a bool or a struct", Pos: v.Pos()}
	}

	for _, op := range []string{"and", "or"} {
		list := v.LookupPath(cue.ParsePath(op))
		if !list.Exists() {
			continue
		}
		iter, err := list.List()
		if err != nil {
			return nil, &CompileError{Field: field + "." + op, Message: "expected a list of predicates", Pos: list.Pos()}
		}
		var children []*ir.Predicate
		for i := 0; iter.Next(); i++ {
			child, err := compilePredicate(iter.Value(), fmt.Sprintf("%s.%s[%d]", field, op, i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if op == "and" {
			return ir.And(children...), nil
		}
		return ir.Or(children...), nil
	}

	if not := v.LookupPath(cue.ParsePath("not")); not.Exists() {
		child, err := compilePredicate(not, field+".not")
		if err != nil {
			return nil, err
		}
		return ir.Not(child), nil
	}

	opName, err := requiredString(v, "op")
	if err != nil {
		return nil, prefixed(err, field)
	}
	test, err := ir.ParseComparator(opName)
	if err != nil {
		return nil, &CompileError{Field: field + ".op", Message: err.Error(), Pos: v.Pos()}
	}
	left, err := optionalScalar(v, "left")
	if err != nil {
		return nil, prefixed(err, field)
	}
	right, err := optionalScalar(v, "right")
	if err != nil {
		return nil, prefixed(err, field)
	}
	return ir.Atom(left, test, right), nil
}

// timeValue reads a duration string or a number of seconds.
func timeValue(v cue.Value, field string) (time.Duration, error) {
	s, err := scalarString(v)
	if err != nil {
		return 0, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	d, err := ir.ParseTime(s)
	if err != nil {
		return 0, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

// scalarString renders a concrete string, number or bool as text.
func scalarString(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	default:
		return "", fmt.Errorf("expected a string, number or bool, got %v", v.IncompleteKind())
	}
}

func requiredString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: name + " must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: name + " must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func optionalScalar(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := scalarString(f)
	if err != nil {
		return "", &CompileError{Field: name, Message: err.Error(), Pos: f.Pos()}
	}
	return s, nil
}

// prefixed qualifies the field of a CompileError with its parent path.
func prefixed(err error, parent string) error {
	if ce, ok := err.(*CompileError); ok {
		return &CompileError{Field: parent + "." + ce.Field, Message: ce.Message, Pos: ce.Pos}
	}
	return err
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
