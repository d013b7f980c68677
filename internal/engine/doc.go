// Package engine implements the hyperplay document runtime.
//
// The engine turns an immutable ir.Document into a live graph of runtime
// objects, schedules their timed events against a per-media clock and
// propagates causal links across the graph.
//
// ARCHITECTURE:
//
// Object Arena:
// Runtime objects live in a Graph addressed by ObjectID. Parents and
// children are indices, never owning pointers. Refer nodes add an alias to
// the target's object instead of creating one, so every id that denotes
// the same content answers with the same *Object.
//
// Lazy Instantiation:
// Objects are created the first time something needs them: the root at
// Start, link binds at compile time, driver calls naming them. Creating an
// object compiles the pending links of its enclosing contexts that have a
// condition on it. A link is compiled exactly once.
//
// Propagation:
// Every external action is drained through an explicit LIFO worklist
// (evalAction). Rejected transitions stop the cascade; the per-propagation
// quota stops documents that keep re-arming themselves.
//
// Single-Threaded Core:
// All state is mutated on the goroutine calling Start, Tick and the other
// driver methods. Players and input devices talk to the engine only
// through Enqueue and NaturalEnd, both polled on the next tick.
//
// CRITICAL PATTERNS:
//
// Deterministic Scheduling:
// Schedules are ordered by time with Ends before Begins at equal time.
// Links fire in declaration order. Transition records are stamped by a
// logical Clock, never by wall time.
package engine
