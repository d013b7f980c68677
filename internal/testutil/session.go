package testutil

// FixedSessionGenerator names every session the same, so a scenario
// recorded twice lands under one id and its golden file stays stable.
type FixedSessionGenerator struct {
	id string
}

// DefaultSessionID is used when a scenario does not name its session.
const DefaultSessionID = "test-session-default"

// NewFixedSessionGenerator returns a generator for id, or for
// DefaultSessionID when id is empty.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
