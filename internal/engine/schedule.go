package engine

import (
	"math"
	"sort"
	"time"

	"github.com/roach88/hyperplay/internal/ir"
)

// TransitionKind tells whether a scheduled transition begins or ends an
// event.
type TransitionKind int

const (
	BeginTransition TransitionKind = iota + 1
	EndTransition
)

func (k TransitionKind) String() string {
	if k == BeginTransition {
		return "begin"
	}
	return "end"
}

// timeInfinite orders open-ended End transitions after everything else.
const timeInfinite = time.Duration(math.MaxInt64)

// AnchorClass groups presentation events by how they are scheduled.
type AnchorClass int

const (
	// ClassNone events (labels) are driven by the player, never by time.
	ClassNone AnchorClass = iota
	// ClassTime events are lambda and interval anchors.
	ClassTime
)

func classOf(a ir.Anchor) AnchorClass {
	if a.Timed() {
		return ClassTime
	}
	return ClassNone
}

// ScheduledTransition is one entry of a media object's timeline.
type ScheduledTransition struct {
	Kind  TransitionKind
	Time  time.Duration
	Event *Event
}

// before orders transitions by time; at equal time Ends sort before
// Begins so an anchor ending where another starts is stopped first.
func (t *ScheduledTransition) before(u *ScheduledTransition) bool {
	if t.Time != u.Time {
		return t.Time < u.Time
	}
	return t.Kind == EndTransition && u.Kind == BeginTransition
}

// Schedule is the time-sorted transition table of one media object plus
// a cursor into it.
//
// Invariants: the table is sorted by (time, End-before-Begin) with
// insertion order among equals; start <= current <= len(table).
type Schedule struct {
	table      []*ScheduledTransition
	start      int
	current    int
	generation uint64
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add inserts the Begin and End transitions of a presentation event.
// Label anchors are scheduling-inert. Adding an event twice is a no-op.
// Returns whether anything was inserted.
func (s *Schedule) Add(ev *Event) bool {
	if ev.typ != ir.Presentation || classOf(ev.anchor) == ClassNone {
		return false
	}
	if ev.IsLambda() {
		if s.contains(ev, BeginTransition) {
			return false
		}
		begin := &ScheduledTransition{Kind: BeginTransition, Time: 0, Event: ev}
		s.insertAt(0, begin)
		if ev.end != ir.TimeNone {
			end := &ScheduledTransition{Kind: EndTransition, Time: ev.end, Event: ev}
			pos := len(s.table)
			for i, t := range s.table {
				if end.before(t) {
					pos = i
					break
				}
			}
			s.insertAt(pos, end)
		}
		return true
	}

	added := s.insertSorted(&ScheduledTransition{Kind: BeginTransition, Time: ev.begin, Event: ev})
	endTime := ev.end
	if endTime == ir.TimeNone {
		endTime = timeInfinite
	}
	if s.insertSorted(&ScheduledTransition{Kind: EndTransition, Time: endTime, Event: ev}) {
		added = true
	}
	return added
}

// insertSorted places t after every entry that does not sort after it,
// using binary search. Duplicates (same event and kind) are rejected.
func (s *Schedule) insertSorted(t *ScheduledTransition) bool {
	lo := sort.Search(len(s.table), func(i int) bool { return !s.table[i].before(t) })
	hi := sort.Search(len(s.table), func(i int) bool { return t.before(s.table[i]) })
	for _, existing := range s.table[lo:hi] {
		if existing.Event == t.Event && existing.Kind == t.Kind {
			return false
		}
	}
	s.insertAt(hi, t)
	return true
}

func (s *Schedule) insertAt(pos int, t *ScheduledTransition) {
	s.table = append(s.table, nil)
	copy(s.table[pos+1:], s.table[pos:])
	s.table[pos] = t
	if pos < s.current {
		s.current++
	}
	if pos < s.start {
		s.start++
	}
}

func (s *Schedule) contains(ev *Event, kind TransitionKind) bool {
	for _, t := range s.table {
		if t.Event == ev && t.Kind == kind {
			return true
		}
	}
	return false
}

// Prepare positions the cursor for a presentation starting at startTime.
// Transitions strictly before startTime are skipped: Begins leave their
// event Occurring, Ends leave it Sleeping and count an occurrence. No
// hooks run and nothing propagates.
func (s *Schedule) Prepare(wholeContent bool, startTime time.Duration) {
	s.generation++
	if wholeContent && startTime == 0 {
		s.start = 0
		s.current = 0
		return
	}
	i := 0
	for ; i < len(s.table) && s.table[i].Time < startTime; i++ {
		t := s.table[i]
		if t.Kind == BeginTransition {
			t.Event.forceState(ir.Occurring)
		} else {
			t.Event.forceState(ir.Sleeping)
			t.Event.occurrences++
		}
	}
	s.start = i
	s.current = i
}

// Advance moves the cursor past every transition due at or before t and
// returns them in table order. The caller fires them.
func (s *Schedule) Advance(t time.Duration) []*ScheduledTransition {
	var due []*ScheduledTransition
	for s.current < len(s.table) && s.table[s.current].Time <= t {
		due = append(due, s.table[s.current])
		s.current++
	}
	return due
}

// Finish ends the presentation at endTime. Events whose End lies after
// endTime are forced Sleeping; events whose End is at or before endTime
// and not yet drained are returned. The caller sends them the same
// transition that ended the lambda, stop or abort.
func (s *Schedule) Finish(endTime time.Duration) []*Event {
	var pending []*Event
	for i, t := range s.table {
		if t.Kind != EndTransition {
			continue
		}
		if t.Time > endTime {
			t.Event.forceState(ir.Sleeping)
			continue
		}
		if i >= s.current {
			pending = append(pending, t.Event)
		}
	}
	return pending
}

// Reset rewinds the cursor to the prepared start and invalidates any
// transitions a caller is still holding from Advance.
func (s *Schedule) Reset() {
	s.generation++
	s.current = s.start
}

// Generation changes whenever the cursor is repositioned by Prepare or
// Reset.
func (s *Schedule) Generation() uint64 {
	return s.generation
}

// Next returns the next transition to drain.
func (s *Schedule) Next() (*ScheduledTransition, bool) {
	if s.current >= len(s.table) {
		return nil, false
	}
	return s.table[s.current], true
}

// Transitions returns a copy of the table.
func (s *Schedule) Transitions() []ScheduledTransition {
	out := make([]ScheduledTransition, len(s.table))
	for i, t := range s.table {
		out[i] = *t
	}
	return out
}
