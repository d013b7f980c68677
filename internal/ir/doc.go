// Package ir provides the static document model for hyperplay.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the document model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Document nodes are immutable once NewDocument returns
//   - Node kinds form a closed set (Media, Context, Switch, Refer)
//   - Times are time.Duration offsets; TimeNone marks an open end
//   - Trace records carry logical sequence numbers, never wall-clock time
package ir
