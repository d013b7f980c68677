package engine

import "github.com/google/uuid"

// SessionIDGenerator names play sessions.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator names sessions with UUIDv7s. Their leading timestamp
// makes session ids sort by creation time in the trace store.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
