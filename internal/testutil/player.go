package testutil

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
)

// RecordingFactory creates RecordingPlayers that append every call they
// receive to one shared log, so tests can assert the order in which the
// engine drove several players.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingFactory struct {
	mu      sync.Mutex
	calls   []string
	players map[string]*RecordingPlayer
	// Refuse lists media ids whose players fail to start.
	Refuse []string
}

// NewRecordingFactory creates an empty factory.
func NewRecordingFactory() *RecordingFactory {
	return &RecordingFactory{players: make(map[string]*RecordingPlayer)}
}

// NewPlayer implements engine.PlayerFactory.
func (f *RecordingFactory) NewPlayer(media *ir.Media) (engine.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &RecordingPlayer{
		NullPlayer: engine.NewNullPlayer(media),
		id:         media.ID(),
		factory:    f,
		refuse:     slices.Contains(f.Refuse, media.ID()),
	}
	f.players[media.ID()] = p
	return p, nil
}

// Player returns the player created for a media id, or nil.
func (f *RecordingFactory) Player(id string) *RecordingPlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[id]
}

// Calls returns a copy of the call log, e.g. "A.prepare(2s)", "A.start".
func (f *RecordingFactory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Reset clears the call log.
func (f *RecordingFactory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *RecordingFactory) log(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// RecordingPlayer is a NullPlayer that logs each call to its factory.
type RecordingPlayer struct {
	*engine.NullPlayer
	id      string
	factory *RecordingFactory
	refuse  bool
}

func (p *RecordingPlayer) Prepare(offset time.Duration) error {
	p.factory.log("%s.prepare(%s)", p.id, offset)
	return p.NullPlayer.Prepare(offset)
}

func (p *RecordingPlayer) Start() error {
	p.factory.log("%s.start", p.id)
	if p.refuse {
		return fmt.Errorf("player %s: start refused", p.id)
	}
	return p.NullPlayer.Start()
}

func (p *RecordingPlayer) Stop() error {
	p.factory.log("%s.stop", p.id)
	return p.NullPlayer.Stop()
}

func (p *RecordingPlayer) Pause() error {
	p.factory.log("%s.pause", p.id)
	return p.NullPlayer.Pause()
}

func (p *RecordingPlayer) Resume() error {
	p.factory.log("%s.resume", p.id)
	return p.NullPlayer.Resume()
}

func (p *RecordingPlayer) SetProperty(name, value string, dur time.Duration) error {
	p.factory.log("%s.set(%s=%s,%s)", p.id, name, value, dur)
	return p.NullPlayer.SetProperty(name, value, dur)
}
