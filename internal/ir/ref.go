package ir

import (
	"fmt"
	"strings"
)

// EventRef names an event by object, type, interface point and key.
type EventRef struct {
	Object    string
	Type      EventType
	Interface string // "" = lambda
	Key       string
}

// QualifiedID renders the full event identifier:
//
//	presentation lambda  obj
//	presentation anchor  obj@anchor
//	attribution          obj.property
//	selection            obj<anchor> or obj<anchor:KEY>
func QualifiedID(object string, typ EventType, iface, key string) string {
	if iface == LambdaID {
		iface = ""
	}
	switch typ {
	case Attribution:
		return object + "." + iface
	case Selection:
		if key != "" {
			return object + "<" + iface + ":" + key + ">"
		}
		return object + "<" + iface + ">"
	default:
		if iface == "" {
			return object
		}
		return object + "@" + iface
	}
}

func (r EventRef) String() string {
	return QualifiedID(r.Object, r.Type, r.Interface, r.Key)
}

// ParseEventRef is the inverse of QualifiedID.
func ParseEventRef(s string) (EventRef, error) {
	if s == "" {
		return EventRef{}, fmt.Errorf("empty event reference")
	}
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if !strings.HasSuffix(s, ">") || i == 0 {
			return EventRef{}, fmt.Errorf("malformed selection reference %q", s)
		}
		inner := s[i+1 : len(s)-1]
		ref := EventRef{Object: s[:i], Type: Selection}
		if j := strings.IndexByte(inner, ':'); j >= 0 {
			ref.Interface, ref.Key = inner[:j], inner[j+1:]
		} else {
			ref.Interface = inner
		}
		return ref, nil
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		if i == 0 || i == len(s)-1 {
			return EventRef{}, fmt.Errorf("malformed presentation reference %q", s)
		}
		iface := s[i+1:]
		if "@"+iface == LambdaID {
			iface = ""
		}
		return EventRef{Object: s[:i], Type: Presentation, Interface: iface}, nil
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if i == 0 || i == len(s)-1 {
			return EventRef{}, fmt.Errorf("malformed attribution reference %q", s)
		}
		return EventRef{Object: s[:i], Type: Attribution, Interface: s[i+1:]}, nil
	}
	return EventRef{Object: s, Type: Presentation}, nil
}
