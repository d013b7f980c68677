package store

import (
	"fmt"

	"github.com/roach88/hyperplay/internal/ir"
)

// transitionRow is the TEXT form of a transition record's enums.
// Enums are stored by name so the database stays readable with the
// sqlite3 shell and survives reordering of the Go constants.
type transitionRow struct {
	EventType  string
	Transition string
	From       string
	To         string
}

func marshalRecord(rec ir.TransitionRecord) transitionRow {
	return transitionRow{
		EventType:  rec.Type.String(),
		Transition: rec.Transition.String(),
		From:       rec.From.String(),
		To:         rec.To.String(),
	}
}

// unmarshalRecord parses the enum columns back into rec.
func unmarshalRecord(row transitionRow, rec *ir.TransitionRecord) error {
	var err error
	if rec.Type, err = ir.ParseEventType(row.EventType); err != nil {
		return fmt.Errorf("unmarshal transition %d: %w", rec.Seq, err)
	}
	if rec.Transition, err = ir.ParseTransition(row.Transition); err != nil {
		return fmt.Errorf("unmarshal transition %d: %w", rec.Seq, err)
	}
	if rec.From, err = ir.ParseEventState(row.From); err != nil {
		return fmt.Errorf("unmarshal transition %d: %w", rec.Seq, err)
	}
	if rec.To, err = ir.ParseEventState(row.To); err != nil {
		return fmt.Errorf("unmarshal transition %d: %w", rec.Seq, err)
	}
	return nil
}
