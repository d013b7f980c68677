package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
)

var _ engine.Observer = (*Recorder)(nil)

// Recorder persists every transition an engine reports into one session.
//
// The engine's observer hook cannot fail, so the first write error is
// kept and later transitions are dropped; check Err after the run.
type Recorder struct {
	store     *Store
	ctx       context.Context
	sessionID string

	mu    sync.Mutex
	err   error
	count int
}

// NewRecorder creates the session row and returns an observer that
// appends to it.
func NewRecorder(ctx context.Context, s *Store, sess Session) (*Recorder, error) {
	if err := s.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &Recorder{store: s, ctx: ctx, sessionID: sess.ID}, nil
}

// OnTransition implements engine.Observer.
func (r *Recorder) OnTransition(rec ir.TransitionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.store.WriteTransition(r.ctx, r.sessionID, rec); err != nil {
		slog.Error("trace write failed", "session", r.sessionID, "seq", rec.Seq, "error", err)
		r.err = err
		return
	}
	r.count++
}

// Count returns the number of transitions written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Finish stores the session's trace hash and returns it.
func (r *Recorder) Finish() (string, error) {
	if err := r.Err(); err != nil {
		return "", err
	}
	return r.store.FinishSession(r.ctx, r.sessionID)
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}
