// Package harness provides conformance testing for hypermedia documents.
//
// The harness compiles a document, plays it on a real engine through a
// scripted list of driver steps, records every accepted transition into
// an in-memory store and validates the trace and the final engine state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session: fixed-session-id
//	document: |
//	  document: {
//	    id: "show"
//	    body: children: video: {src: "video.mp4", dur: "10s"}
//	  }
//	steps:
//	  - start: true
//	    expect: { applied: 2 }
//	  - tick: 10s
//	  - action: { target: video, transition: start }
//	  - key: { key: RED }
//	  - set: { object: video, property: volume, value: "50" }
//	  - reselect: menu
//	  - finish: video
//	assertions:
//	  - type: trace_order
//	    events: ["show:start", "video:start", "video:stop"]
//	  - type: state
//	    event: video
//	    state: sleeping
//
// A document_file field may replace document; it is resolved relative to
// the scenario file.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an event transition appears in the trace
//   - trace_order: Verifies event transitions appear in specified order
//   - trace_count: Verifies an event transition appears exactly N times
//   - state: Verifies an event's final state
//   - occurrences: Verifies an event's occurrence count
//   - property: Verifies an object's final property value
//   - finished: Verifies whether the document ended
//   - player_calls: Verifies the engine drove players in specified order
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and a fixed session id
// to ensure reproducible test results and golden snapshot comparison.
//
// The harness uses:
//   - Fixed session ids (from scenario.session or "test-session-default")
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - Recording players (testutil.RecordingFactory)
//   - In-memory SQLite database (isolated per scenario)
package harness
