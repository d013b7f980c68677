package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hyperplay/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession creates a session record with fixed hashes.
func createTestSession(id string) Session {
	return Session{
		ID:            id,
		DocumentID:    "doc",
		DocumentHash:  "doc-hash",
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
	}
}

// createTestRecord creates a lambda START record for object at seq.
func createTestRecord(seq int64, object string) ir.TransitionRecord {
	return ir.TransitionRecord{
		Seq:        seq,
		Time:       seq * 40,
		Event:      object,
		Object:     object,
		Type:       ir.Presentation,
		Transition: ir.Start,
		From:       ir.Sleeping,
		To:         ir.Occurring,
	}
}
