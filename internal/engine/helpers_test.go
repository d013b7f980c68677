package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/ir"
)

func newMedia(id string, dur time.Duration, anchors ...ir.Anchor) *ir.Media {
	return &ir.Media{Base: ir.Base{NodeID: id, Anchors: anchors}, Duration: dur}
}

func newSettings(props ...ir.Anchor) *ir.Media {
	return &ir.Media{
		Base:     ir.Base{NodeID: ir.SettingsID, Anchors: props},
		MimeType: ir.SettingsMimeType,
		Settings: true,
	}
}

func newContext(id string, children ...ir.Node) *ir.Context {
	return &ir.Context{Base: ir.Base{NodeID: id}, Children: children}
}

func interval(id string, begin, end time.Duration) ir.Anchor {
	return ir.Anchor{ID: id, Kind: ir.AnchorInterval, Begin: begin, End: end}
}

func label(id string) ir.Anchor {
	return ir.Anchor{ID: id, Kind: ir.AnchorLabel, End: ir.TimeNone}
}

func property(id, value string) ir.Anchor {
	return ir.Anchor{ID: id, Kind: ir.AnchorProperty, Value: value}
}

func onPresentation(component string, tr ir.Transition) ir.Bind {
	return ir.Bind{Component: component, EventType: ir.Presentation, Transition: tr}
}

func newLink(id string, cond ir.Bind, actions ...ir.Bind) *ir.Link {
	return &ir.Link{ID: id, Conditions: []ir.Bind{cond}, Actions: actions}
}

func mustDocument(t *testing.T, root *ir.Context) *ir.Document {
	t.Helper()
	doc, err := ir.NewDocument("test", root)
	require.NoError(t, err)
	return doc
}

// playerSet remembers every NullPlayer the engine asked for.
type playerSet struct {
	mu      sync.Mutex
	players map[string]*NullPlayer
}

func newPlayerSet() *playerSet {
	return &playerSet{players: make(map[string]*NullPlayer)}
}

func (s *playerSet) NewPlayer(media *ir.Media) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := NewNullPlayer(media)
	s.players[media.ID()] = p
	return p, nil
}

func (s *playerSet) get(id string) *NullPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

// brokenPlayer refuses to start.
type brokenPlayer struct {
	*NullPlayer
}

func (brokenPlayer) Start() error { return errors.New("decoder unavailable") }

// lambdaState reads the lambda state of an instantiated object.
func lambdaState(t *testing.T, e *Engine, id string) ir.EventState {
	t.Helper()
	obj, ok := e.Graph().Lookup(id)
	require.True(t, ok, "object %s not instantiated", id)
	return obj.Lambda().State()
}

func eventOf(t *testing.T, e *Engine, qualifiedID string) *Event {
	t.Helper()
	ev, ok := e.Event(qualifiedID)
	require.True(t, ok, "event %s does not exist", qualifiedID)
	return ev
}
