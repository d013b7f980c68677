package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/hyperplay/internal/ir"
)

const selectTransitions = `SELECT seq, time_ms, event, object, event_type, transition, from_state, to_state FROM transitions`

// TraceQuery selects transitions of one session. Zero-valued filters
// match everything; the filters that are set must all hold.
//
// Example:
//
//	TraceQuery{Session: "s1", Object: "video", Transition: ir.Stop}
//
// compiles to
//
//	SELECT ... FROM transitions
//	WHERE session_id = ? AND object = ? AND transition = ?
//	ORDER BY seq ASC
type TraceQuery struct {
	Session    string
	Object     string
	Event      string // qualified event id, e.g. "menu<:RED>"
	Type       ir.EventType
	Transition ir.Transition
	// Since and Until bound engine time in milliseconds, inclusive.
	// Until <= 0 leaves the window open.
	Since int64
	Until int64
}

// Compile converts the query to parameterized SQL.
//
// Values are never interpolated. Every query is ordered by seq, the
// session's logical clock.
func (q TraceQuery) Compile() (string, []any, error) {
	if q.Session == "" {
		return "", nil, errors.New("trace query: session is required")
	}
	if q.Since < 0 {
		return "", nil, fmt.Errorf("trace query: negative since %d", q.Since)
	}
	if q.Until > 0 && q.Until < q.Since {
		return "", nil, fmt.Errorf("trace query: until %d before since %d", q.Until, q.Since)
	}

	conds := []string{"session_id = ?"}
	params := []any{q.Session}
	add := func(cond string, value any) {
		conds = append(conds, cond)
		params = append(params, value)
	}

	if q.Object != "" {
		add("object = ?", q.Object)
	}
	if q.Event != "" {
		add("event = ?", q.Event)
	}
	if q.Type != 0 {
		if _, err := ir.ParseEventType(q.Type.String()); err != nil {
			return "", nil, fmt.Errorf("trace query: %w", err)
		}
		add("event_type = ?", q.Type.String())
	}
	if q.Transition != 0 {
		if _, err := ir.ParseTransition(q.Transition.String()); err != nil {
			return "", nil, fmt.Errorf("trace query: %w", err)
		}
		add("transition = ?", q.Transition.String())
	}
	if q.Since > 0 {
		add("time_ms >= ?", q.Since)
	}
	if q.Until > 0 {
		add("time_ms <= ?", q.Until)
	}

	return selectTransitions + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY seq ASC", params, nil
}

// String describes the filters that are set, e.g. "object=video
// transition=stop". The session is not included.
func (q TraceQuery) String() string {
	var parts []string
	if q.Object != "" {
		parts = append(parts, "object="+q.Object)
	}
	if q.Event != "" {
		parts = append(parts, "event="+q.Event)
	}
	if q.Type != 0 {
		parts = append(parts, "type="+q.Type.String())
	}
	if q.Transition != 0 {
		parts = append(parts, "transition="+q.Transition.String())
	}
	if q.Since > 0 {
		parts = append(parts, fmt.Sprintf("since=%dms", q.Since))
	}
	if q.Until > 0 {
		parts = append(parts, fmt.Sprintf("until=%dms", q.Until))
	}
	return strings.Join(parts, " ")
}

// QueryTransitions runs q and returns the matching records in seq order.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryTransitions(ctx context.Context, q TraceQuery) ([]ir.TransitionRecord, error) {
	query, params, err := q.Compile()
	if err != nil {
		return nil, err
	}
	return s.queryTransitions(ctx, query, params...)
}
