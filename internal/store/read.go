package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/hyperplay/internal/ir"
)

// ErrSessionNotFound is returned when a session id has no record.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession retrieves a single session by ID, with its transition count.
// Returns ErrSessionNotFound if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.document_id, s.document_hash, s.engine_version, s.trace_version, s.trace_hash,
		       (SELECT COUNT(*) FROM transitions t WHERE t.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %q: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

// ListSessions returns every session ordered by id. UUIDv7 ids sort by
// creation time.
//
// Returns an empty slice (not nil) if the store has no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.document_id, s.document_hash, s.engine_version, s.trace_version, s.trace_hash,
		       (SELECT COUNT(*) FROM transitions t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadTransitions returns the recorded trace of a session.
// Results are ordered deterministically: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadTransitions(ctx context.Context, sessionID string) ([]ir.TransitionRecord, error) {
	return s.QueryTransitions(ctx, TraceQuery{Session: sessionID})
}

// ReadObjectTransitions returns the transitions of one object's events
// within a session, ordered by seq.
func (s *Store) ReadObjectTransitions(ctx context.Context, sessionID, object string) ([]ir.TransitionRecord, error) {
	return s.QueryTransitions(ctx, TraceQuery{Session: sessionID, Object: object})
}

func (s *Store) queryTransitions(ctx context.Context, query string, args ...any) ([]ir.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	records := []ir.TransitionRecord{}
	for rows.Next() {
		var rec ir.TransitionRecord
		var row transitionRow
		if err := rows.Scan(
			&rec.Seq,
			&rec.Time,
			&rec.Event,
			&rec.Object,
			&row.EventType,
			&row.Transition,
			&row.From,
			&row.To,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if err := unmarshalRecord(row, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return records, nil
}

// TraceHash recomputes the hash of a session's recorded trace.
func (s *Store) TraceHash(ctx context.Context, sessionID string) (string, error) {
	records, err := s.ReadTransitions(ctx, sessionID)
	if err != nil {
		return "", err
	}
	hash, err := ir.TraceHash(records)
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	return hash, nil
}

// VerifySession recomputes the trace hash and compares it with the one
// stored when the session finished. Unfinished sessions never verify.
func (s *Store) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess.TraceHash == "" {
		return false, nil
	}
	hash, err := s.TraceHash(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return hash == sess.TraceHash, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID,
		&sess.DocumentID,
		&sess.DocumentHash,
		&sess.EngineVersion,
		&sess.TraceVersion,
		&sess.TraceHash,
		&sess.Transitions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}
