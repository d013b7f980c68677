// Package store keeps play sessions in SQLite so a trace can be listed,
// filtered and re-verified after the engine that produced it is gone.
//
// Two tables hold everything:
//   - sessions: one row per play, with the document hash, the engine and
//     trace versions, and the trace hash once the session is finished
//   - transitions: every accepted event transition, keyed by
//     (session_id, seq)
//
// Rows are ordered by seq, the engine's logical clock. time_ms is document
// time and only ever filtered on or displayed. Every read ends in
// ORDER BY seq so two reads of one session always agree, and writes use
// ON CONFLICT DO NOTHING so recording the same transition twice is
// harmless.
//
// The schema is created from the embedded schema.sql; later changes are
// steps in the migrations table, tracked by PRAGMA user_version.
//
// VerifySession recomputes ir.TraceHash over the stored rows and compares
// it with the hash written by FinishSession, which catches edits made to
// the database after recording.
package store
