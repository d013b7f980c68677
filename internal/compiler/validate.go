package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/hyperplay/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrNilDocument = "E100" // nothing to validate

	// Document structure errors (E101-E108)
	ErrDocumentIDEmpty   = "E101" // document id is required
	ErrInvalidInterval   = "E102" // area ends before it begins
	ErrPortUnresolved    = "E103" // port does not reach a child anchor
	ErrBindUnresolved    = "E104" // link bind does not resolve
	ErrDuplicateAnchor   = "E105" // duplicate anchor/port id on a node
	ErrLinkIncomplete    = "E106" // link without conditions or actions
	ErrInvalidSwitchRule = "E107" // rule or default names no child
	ErrInvalidSwitchPort = "E108" // switch port mapping names no child anchor

	// Predicate and event errors (E109-E119)
	ErrNotPredicate      = "E109" // negation is not supported
	ErrEventAnchorKind   = "E110" // event type does not fit the anchor kind
	ErrDuplicateLink     = "E111" // duplicate link id in a context
	ErrInvalidDelay      = "E112" // delay/duration param is not a time
	ErrInvalidPredicate  = "E113" // atom without a comparator or operands
	ErrDefaultNotInRules = "E114" // switch with neither rules nor default
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled document against the structural rules the
// runtime relies on. Returns all errors found (does not fail-fast).
func Validate(doc *ir.Document) []ValidationError {
	if doc == nil {
		return []ValidationError{{Field: "document", Message: "document is nil", Code: ErrNilDocument}}
	}
	v := &validator{doc: doc}
	if strings.TrimSpace(doc.ID) == "" {
		v.add("id", ErrDocumentIDEmpty, "document id is required and must be non-empty")
	}
	for _, n := range doc.Nodes() {
		v.anchors(n)
		switch n := n.(type) {
		case *ir.Context:
			v.context(n)
		case *ir.Switch:
			v.switchNode(n)
		}
	}
	return v.errs
}

type validator struct {
	doc  *ir.Document
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) anchors(n ir.Node) {
	var anchors []ir.Anchor
	switch n := n.(type) {
	case *ir.Media:
		anchors = n.Anchors
	case *ir.Context:
		anchors = n.Anchors
	case *ir.Switch:
		anchors = n.Anchors
	}
	seen := make(map[string]bool)
	for _, a := range anchors {
		field := n.ID() + "." + a.ID
		if seen[a.ID] {
			v.add(field, ErrDuplicateAnchor, "duplicate anchor id %q on %q", a.ID, n.ID())
		}
		seen[a.ID] = true
		if a.Kind == ir.AnchorInterval && a.End != ir.TimeNone && a.End < a.Begin {
			v.add(field, ErrInvalidInterval, "area ends at %s before it begins at %s", a.End, a.Begin)
		}
	}
	if ctx, ok := n.(*ir.Context); ok {
		for _, p := range ctx.Ports {
			if seen[p.ID] {
				v.add(n.ID()+"."+p.ID, ErrDuplicateAnchor, "port %q collides with another interface of %q", p.ID, n.ID())
			}
			seen[p.ID] = true
		}
	}
}

func (v *validator) context(ctx *ir.Context) {
	for _, p := range ctx.Ports {
		field := ctx.ID() + ".ports." + p.ID
		if !isChild(ctx.Children, p.Component) {
			v.add(field, ErrPortUnresolved, "port component %q is not a child of %q", p.Component, ctx.ID())
			continue
		}
		if _, err := v.doc.Resolve(ctx.ID(), p.ID); err != nil {
			v.add(field, ErrPortUnresolved, "%v", err)
		}
	}

	seen := make(map[string]bool)
	for _, l := range ctx.Links {
		field := ctx.ID() + ".links." + l.ID
		if seen[l.ID] {
			v.add(field, ErrDuplicateLink, "duplicate link id %q in %q", l.ID, ctx.ID())
		}
		seen[l.ID] = true
		if len(l.Conditions) == 0 {
			v.add(field, ErrLinkIncomplete, "link has no condition binds")
		}
		if len(l.Actions) == 0 {
			v.add(field, ErrLinkIncomplete, "link has no action binds")
		}
		for i, b := range l.Conditions {
			v.bind(ctx, fmt.Sprintf("%s.conditions[%d]", field, i), b)
			v.predicate(fmt.Sprintf("%s.conditions[%d].predicate", field, i), b.Predicate)
		}
		for i, b := range l.Actions {
			bf := fmt.Sprintf("%s.actions[%d]", field, i)
			v.bind(ctx, bf, b)
			for _, name := range []string{"delay", "duration"} {
				raw, ok := b.Params[name]
				if !ok || strings.HasPrefix(raw, "$") {
					continue
				}
				if _, err := ir.ParseTime(raw); err != nil {
					v.add(bf+".params."+name, ErrInvalidDelay, "%v", err)
				}
			}
		}
	}
}

// bind checks that a bind names the context itself or one of its children
// and that the interface point fits the event type.
func (v *validator) bind(ctx *ir.Context, field string, b ir.Bind) {
	if b.Component != ctx.ID() && !isChild(ctx.Children, b.Component) {
		v.add(field, ErrBindUnresolved, "component %q is neither %q nor one of its children", b.Component, ctx.ID())
		return
	}
	res, err := v.doc.Resolve(b.Component, b.Interface)
	if err != nil {
		v.add(field, ErrBindUnresolved, "%v", err)
		return
	}
	switch b.EventType {
	case ir.Presentation, ir.Selection:
		if res.Anchor.Kind == ir.AnchorProperty {
			v.add(field, ErrEventAnchorKind, "%s event cannot bind property %q", b.EventType, res.Anchor.ID)
		}
	case ir.Attribution:
		if res.Anchor.Kind != ir.AnchorProperty && res.Anchor.Kind != ir.AnchorSwitchPort {
			v.add(field, ErrEventAnchorKind, "attribution event needs a property, got %s anchor %q", res.Anchor.Kind, res.Anchor.ID)
		}
	}
}

func (v *validator) predicate(field string, p *ir.Predicate) {
	if p == nil {
		return
	}
	if p.ContainsNot() {
		v.add(field, ErrNotPredicate, "not predicates are unsupported: %s", p)
		return
	}
	var walk func(*ir.Predicate)
	walk = func(p *ir.Predicate) {
		switch p.Kind {
		case ir.PredAtom:
			if p.Test == 0 || (p.Left == "" && p.Right == "") {
				v.add(field, ErrInvalidPredicate, "atom %s has no comparator or operands", p)
			}
		case ir.PredAnd, ir.PredOr:
			for _, c := range p.Children {
				walk(c)
			}
		}
	}
	walk(p)
}

func (v *validator) switchNode(sw *ir.Switch) {
	if len(sw.Rules) == 0 && sw.Default == "" {
		v.add(sw.ID(), ErrDefaultNotInRules, "switch %q has neither rules nor a default", sw.ID())
	}
	for i, r := range sw.Rules {
		field := fmt.Sprintf("%s.rules[%d]", sw.ID(), i)
		if !isChild(sw.Children, r.Component) {
			v.add(field, ErrInvalidSwitchRule, "rule component %q is not a child of %q", r.Component, sw.ID())
		}
		v.predicate(field+".when", r.Predicate)
	}
	if sw.Default != "" && !isChild(sw.Children, sw.Default) {
		v.add(sw.ID()+".default", ErrInvalidSwitchRule, "default %q is not a child of %q", sw.Default, sw.ID())
	}
	for _, sp := range sw.SwitchPorts {
		for j, m := range sp.Mappings {
			field := fmt.Sprintf("%s.switchPorts.%s[%d]", sw.ID(), sp.ID, j)
			if !isChild(sw.Children, m.Component) {
				v.add(field, ErrInvalidSwitchPort, "mapping component %q is not a child of %q", m.Component, sw.ID())
				continue
			}
			if _, err := v.doc.Resolve(m.Component, m.Interface); err != nil {
				v.add(field, ErrInvalidSwitchPort, "%v", err)
			}
		}
	}
}

func isChild(children []ir.Node, id string) bool {
	for _, c := range children {
		if c.ID() == id {
			return true
		}
	}
	return false
}
