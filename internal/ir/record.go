package ir

// TransitionRecord is one accepted event transition in a play session.
type TransitionRecord struct {
	Seq        int64      `json:"seq"`  // Logical clock
	Time       int64      `json:"time"` // Engine time in milliseconds
	Event      string     `json:"event"`
	Object     string     `json:"object"`
	Type       EventType  `json:"type"`
	Transition Transition `json:"transition"`
	From       EventState `json:"from"`
	To         EventState `json:"to"`
}

// Canonical returns the record as a plain map for canonical marshaling.
func (r TransitionRecord) Canonical() map[string]any {
	return map[string]any{
		"seq":        r.Seq,
		"time":       r.Time,
		"event":      r.Event,
		"object":     r.Object,
		"type":       r.Type.String(),
		"transition": r.Transition.String(),
		"from":       r.From.String(),
		"to":         r.To.String(),
	}
}
