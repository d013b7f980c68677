package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running a document.
//
// Runtime errors include:
//   - Document inconsistency: a link or port names something that does not exist
//   - Unresolved bind: a link bind cannot be turned into a live event
//   - Switch without child: selection found neither a matching rule nor a default
//   - Unresolved reference: a predicate names an object the document lacks
//   - Quota exceeded: one propagation ran more steps than allowed
//
// All of them abort the current propagation. Rejected transitions and
// missing properties are not errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Object identifies the affected object or node.
	Object string

	// Event identifies the affected event (qualified id).
	Event string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDocument indicates the document is internally inconsistent.
	ErrCodeDocument RuntimeErrorCode = "DOCUMENT_INCONSISTENCY"

	// ErrCodeUnresolvedBind indicates a link bind could not be resolved.
	ErrCodeUnresolvedBind RuntimeErrorCode = "UNRESOLVED_BIND"

	// ErrCodeSwitchNoChild indicates selection produced no child.
	ErrCodeSwitchNoChild RuntimeErrorCode = "SWITCH_NO_CHILD"

	// ErrCodeUnresolvedReference indicates a predicate names a missing object.
	ErrCodeUnresolvedReference RuntimeErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeUnsupportedPredicate indicates a Not predicate reached evaluation.
	ErrCodeUnsupportedPredicate RuntimeErrorCode = "UNSUPPORTED_PREDICATE"

	// ErrCodeUnknownEvent indicates a driver call named an unknown event or object.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"

	// ErrCodeQuotaExceeded indicates a propagation exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	if e.Object != "" {
		return fmt.Sprintf("%s: %s (object=%s)", e.Code, e.Message, e.Object)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, codes ...RuntimeErrorCode) bool {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return false
	}
	for _, c := range codes {
		if re.Code == c {
			return true
		}
	}
	return false
}

// IsDocumentError returns true for errors caused by an inconsistent
// document (bad references, unresolvable binds).
// Uses errors.As to handle wrapped errors.
func IsDocumentError(err error) bool {
	return hasCode(err, ErrCodeDocument, ErrCodeUnresolvedBind, ErrCodeUnresolvedReference)
}

// IsSwitchError returns true if selection found no child.
func IsSwitchError(err error) bool {
	return hasCode(err, ErrCodeSwitchNoChild)
}

// IsUnknownEventError returns true if a driver call named an unknown event.
func IsUnknownEventError(err error) bool {
	return hasCode(err, ErrCodeUnknownEvent)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewDocumentError creates a RuntimeError for an inconsistent document.
func NewDocumentError(object string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDocument,
		Message: cause.Error(),
		Object:  object,
	}
}

// NewUnresolvedBindError creates a RuntimeError for a bind that cannot be
// resolved to an event.
func NewUnresolvedBindError(link, component, iface string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnresolvedBind,
		Message: fmt.Sprintf("link %s: bind %s/%s: %v", link, component, iface, cause),
		Object:  component,
		Details: map[string]string{
			"link":      link,
			"interface": iface,
		},
	}
}

// NewSwitchError creates a RuntimeError for a switch with no selectable
// child.
func NewSwitchError(switchID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSwitchNoChild,
		Message: "no rule matched and no default child",
		Object:  switchID,
	}
}

// NewUnresolvedReferenceError creates a RuntimeError for a predicate
// operand naming a missing object.
func NewUnresolvedReferenceError(object, property string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnresolvedReference,
		Message: fmt.Sprintf("property reference $%s.%s names an unknown object", object, property),
		Object:  object,
	}
}

// NewUnsupportedPredicateError creates a RuntimeError for Not predicates.
func NewUnsupportedPredicateError(predicate string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedPredicate,
		Message: fmt.Sprintf("predicate %s is not supported", predicate),
	}
}

// NewUnknownEventError creates a RuntimeError for an unknown event or
// object named by a driver call.
func NewUnknownEventError(ref, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownEvent,
		Message: reason,
		Event:   ref,
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(seed string, steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("propagation exceeded max steps (%d >= %d)", steps, maxSteps),
		Event:   seed,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}
