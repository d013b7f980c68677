package store

import (
	"context"
	"fmt"

	"github.com/roach88/hyperplay/internal/ir"
)

// Session describes one play of a document.
type Session struct {
	ID            string `json:"id" yaml:"id"`
	DocumentID    string `json:"document_id" yaml:"document_id"`
	DocumentHash  string `json:"document_hash" yaml:"document_hash"`
	EngineVersion string `json:"engine_version" yaml:"engine_version"`
	TraceVersion  string `json:"trace_version" yaml:"trace_version"`
	// TraceHash is empty until the session is finished.
	TraceHash string `json:"trace_hash,omitempty" yaml:"trace_hash,omitempty"`
	// Transitions counts recorded transitions; filled by reads only.
	Transitions int `json:"transitions" yaml:"transitions"`
}

// NewSession describes a session playing doc, stamped with the current
// engine and trace versions.
func NewSession(id string, doc *ir.Document) (Session, error) {
	hash, err := ir.DocumentHash(doc)
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	return Session{
		ID:            id,
		DocumentID:    doc.ID,
		DocumentHash:  hash,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
	}, nil
}

// CreateSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, document_id, document_hash, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.DocumentID,
		sess.DocumentHash,
		sess.EngineVersion,
		sess.TraceVersion,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteTransition appends one accepted transition to a session.
// Uses ON CONFLICT DO NOTHING on (session_id, seq) for idempotency.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteTransition(ctx context.Context, sessionID string, rec ir.TransitionRecord) error {
	row := marshalRecord(rec)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(session_id, seq, time_ms, event, object, event_type, transition, from_state, to_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		rec.Seq,
		rec.Time,
		rec.Event,
		rec.Object,
		row.EventType,
		row.Transition,
		row.From,
		row.To,
	)
	if err != nil {
		return fmt.Errorf("write transition %d: %w", rec.Seq, err)
	}
	return nil
}

// FinishSession computes the trace hash of everything recorded for the
// session and stores it. Finishing twice recomputes the same hash.
func (s *Store) FinishSession(ctx context.Context, sessionID string) (string, error) {
	hash, err := s.TraceHash(ctx, sessionID)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET trace_hash = ? WHERE id = ?`, hash, sessionID)
	if err != nil {
		return "", fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("finish session: %w", ErrSessionNotFound)
	}
	return hash, nil
}
