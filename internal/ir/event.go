package ir

import "fmt"

// EventType distinguishes the three kinds of state-machine events.
type EventType int

const (
	// Presentation events track the exhibition of a time interval or label.
	Presentation EventType = iota + 1
	// Attribution events track assignment of a property value.
	Attribution
	// Selection events track user interaction (key press) on an anchor.
	Selection
)

var eventTypeNames = map[EventType]string{
	Presentation: "presentation",
	Attribution:  "attribution",
	Selection:    "selection",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ParseEventType converts a lowercase name into an EventType.
// The empty string means presentation.
func ParseEventType(s string) (EventType, error) {
	if s == "" {
		return Presentation, nil
	}
	for t, name := range eventTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// EventState is the state of an event's state machine.
type EventState int

const (
	Sleeping EventState = iota
	Occurring
	Paused
)

var eventStateNames = map[EventState]string{
	Sleeping:  "sleeping",
	Occurring: "occurring",
	Paused:    "paused",
}

func (s EventState) String() string {
	if n, ok := eventStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("EventState(%d)", int(s))
}

// ParseEventState converts a lowercase name into an EventState.
func ParseEventState(s string) (EventState, error) {
	for st, name := range eventStateNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown event state %q", s)
}

// Transition names an edge of the event state machine.
type Transition int

const (
	Start Transition = iota + 1
	Pause
	Resume
	Stop
	Abort
)

var transitionNames = map[Transition]string{
	Start:  "start",
	Pause:  "pause",
	Resume: "resume",
	Stop:   "stop",
	Abort:  "abort",
}

func (t Transition) String() string {
	if s, ok := transitionNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Transition(%d)", int(t))
}

// ParseTransition converts a lowercase name into a Transition.
func ParseTransition(s string) (Transition, error) {
	for t, name := range transitionNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transition %q", s)
}

// NextState returns the state reached by applying tr in state s.
// The second result is false when the transition is not legal from s.
//
//	Sleeping|Paused --start--> Occurring
//	Occurring --pause--> Paused
//	Paused    --resume-> Occurring
//	Occurring|Paused --stop|abort--> Sleeping
func NextState(s EventState, tr Transition) (EventState, bool) {
	switch tr {
	case Start:
		if s != Occurring {
			return Occurring, true
		}
	case Pause:
		if s == Occurring {
			return Paused, true
		}
	case Resume:
		if s == Paused {
			return Occurring, true
		}
	case Stop, Abort:
		if s == Occurring || s == Paused {
			return Sleeping, true
		}
	}
	return s, false
}
