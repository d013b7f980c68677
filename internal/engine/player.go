package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// Player renders one media object. Implementations may run their own
// goroutines; the engine only calls them from its own goroutine and polls
// NaturalEnd once per tick.
type Player interface {
	// Prepare positions the content at offset before Start.
	Prepare(offset time.Duration) error
	Start() error
	Stop() error
	Pause() error
	Resume() error
	// SetProperty applies a property, animated over dur when dur > 0.
	SetProperty(name, value string, dur time.Duration) error
	// Property reads a property the player owns.
	Property(name string) (string, bool)
	// NaturalEnd reports, once, that the content ended on its own.
	NaturalEnd() bool
}

// PlayerFactory creates players for media nodes.
type PlayerFactory interface {
	NewPlayer(media *ir.Media) (Player, error)
}

// PlayerFactoryFunc adapts a function to PlayerFactory.
type PlayerFactoryFunc func(media *ir.Media) (Player, error)

// NewPlayer implements PlayerFactory.
func (f PlayerFactoryFunc) NewPlayer(media *ir.Media) (Player, error) {
	return f(media)
}

// NullPlayerFactory creates headless NullPlayers.
var NullPlayerFactory = PlayerFactoryFunc(func(media *ir.Media) (Player, error) {
	return NewNullPlayer(media), nil
})

// PlayerStatus is the coarse state of a NullPlayer.
type PlayerStatus string

const (
	PlayerIdle    PlayerStatus = "idle"
	PlayerPlaying PlayerStatus = "playing"
	PlayerPaused  PlayerStatus = "paused"
	PlayerStopped PlayerStatus = "stopped"
)

// NullPlayer presents nothing. Content length comes from the schedule;
// Finish simulates the content ending on its own.
//
// Thread-safety: Finish may be called from any goroutine.
type NullPlayer struct {
	mu     sync.Mutex
	media  string
	status PlayerStatus
	offset time.Duration
	props  map[string]string
	ended  atomic.Bool
}

// NewNullPlayer creates a NullPlayer for media.
func NewNullPlayer(media *ir.Media) *NullPlayer {
	return &NullPlayer{
		media:  media.ID(),
		status: PlayerIdle,
		props:  make(map[string]string),
	}
}

func (p *NullPlayer) Prepare(offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = offset
	return nil
}

func (p *NullPlayer) Start() error {
	return p.set(PlayerPlaying, PlayerIdle, PlayerStopped)
}

func (p *NullPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = PlayerStopped
	return nil
}

func (p *NullPlayer) Pause() error {
	return p.set(PlayerPaused, PlayerPlaying)
}

func (p *NullPlayer) Resume() error {
	return p.set(PlayerPlaying, PlayerPaused)
}

func (p *NullPlayer) set(to PlayerStatus, from ...PlayerStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range from {
		if p.status == f {
			p.status = to
			return nil
		}
	}
	return fmt.Errorf("player %s: cannot go %s from %s", p.media, to, p.status)
}

func (p *NullPlayer) SetProperty(name, value string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props[name] = value
	return nil
}

func (p *NullPlayer) Property(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.props[name]
	return v, ok
}

func (p *NullPlayer) NaturalEnd() bool {
	return p.ended.Swap(false)
}

// Finish marks the content as ended; the engine stops the media on its
// next tick.
func (p *NullPlayer) Finish() {
	p.ended.Store(true)
}

// Status returns the coarse player state.
func (p *NullPlayer) Status() PlayerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Offset returns the offset given to the last Prepare.
func (p *NullPlayer) Offset() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}
