package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperplay/internal/ir"
	"github.com/roach88/hyperplay/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Object     string
	Event      string
	Type       string
	Transition string
	Since      time.Duration
	Until      time.Duration
	Verify     bool
}

// TraceLine is one transition as shown by play and trace.
type TraceLine struct {
	Seq        int64  `json:"seq" yaml:"seq"`
	Time       string `json:"time" yaml:"time"`
	Object     string `json:"object" yaml:"object"`
	Event      string `json:"event" yaml:"event"`
	Type       string `json:"type" yaml:"type"`
	Transition string `json:"transition" yaml:"transition"`
	From       string `json:"from" yaml:"from"`
	To         string `json:"to" yaml:"to"`
}

// NewTraceLine converts a recorded transition for display.
func NewTraceLine(rec ir.TransitionRecord) TraceLine {
	return TraceLine{
		Seq:        rec.Seq,
		Time:       (time.Duration(rec.Time) * time.Millisecond).String(),
		Object:     rec.Object,
		Event:      rec.Event,
		Type:       rec.Type.String(),
		Transition: rec.Transition.String(),
		From:       rec.From.String(),
		To:         rec.To.String(),
	}
}

// TraceResult holds the trace of one recorded session.
type TraceResult struct {
	Session     store.Session `json:"session" yaml:"session"`
	Filter      string        `json:"filter,omitempty" yaml:"filter,omitempty"`
	Transitions []TraceLine   `json:"transitions" yaml:"transitions"`
	TraceHash   string        `json:"trace_hash" yaml:"trace_hash"`
	Verified    *bool         `json:"verified,omitempty" yaml:"verified,omitempty"`
	Stats       TraceStats    `json:"stats" yaml:"stats"`
}

// TraceStats summarizes a trace by transition.
type TraceStats struct {
	Total   int `json:"total" yaml:"total"`
	Starts  int `json:"starts" yaml:"starts"`
	Stops   int `json:"stops" yaml:"stops"`
	Pauses  int `json:"pauses" yaml:"pauses"`
	Resumes int `json:"resumes" yaml:"resumes"`
	Aborts  int `json:"aborts" yaml:"aborts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "Inspect recorded play sessions",
		Long: `Inspect the sessions recorded by "hyperplay play --db".

Without a session id, lists every session in the database. With one,
prints the session's transitions in order together with the trace hash
recomputed from them. Filters narrow the printed transitions; the hash
always covers the whole session. --verify compares that hash with the one stored
when the session finished and fails if they differ.

Examples:
  hyperplay trace --db trace.db
  hyperplay trace --db trace.db 01923e4f-...
  hyperplay trace --db trace.db 01923e4f-... --object video
  hyperplay trace --db trace.db 01923e4f-... --type selection --since 2s
  hyperplay trace --db trace.db 01923e4f-... --verify --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTraceList(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite trace database (required)")
	cmd.Flags().StringVar(&opts.Object, "object", "", "only show transitions of this object")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only show transitions of this event, e.g. menu<:RED>")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show presentation, attribution or selection events")
	cmd.Flags().StringVar(&opts.Transition, "transition", "", "only show start, stop, pause, resume or abort")
	cmd.Flags().DurationVar(&opts.Since, "since", 0, "only show transitions at or after this engine time")
	cmd.Flags().DurationVar(&opts.Until, "until", 0, "only show transitions at or before this engine time")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "check the stored trace hash")

	return cmd
}

func openTraceStore(opts *TraceOptions) (*store.Store, error) {
	if opts.Config == nil || opts.Config.StorePath == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	st, err := store.Open(opts.Config.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := openTraceStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if formatter.Structured() {
		return formatter.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		status := formatter.Yellow("unfinished")
		if s.TraceHash != "" {
			status = formatter.Green("finished")
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  %d transition(s)  %s\n", s.ID, formatter.Cyan(s.DocumentID), s.Transitions, status)
	}
	return nil
}

func runTrace(opts *TraceOptions, sessionID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	st, err := openTraceStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.ReadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			_ = formatter.Error(ErrCodeNotFound, "session not found", map[string]string{"session": sessionID})
		}
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	query, err := opts.query(sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	records, err := st.QueryTransitions(ctx, query)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	hash, err := st.TraceHash(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash trace", err)
	}

	result := TraceResult{
		Session:     sess,
		Filter:      query.String(),
		Transitions: make([]TraceLine, 0, len(records)),
		TraceHash:   hash,
		Stats:       traceStats(records),
	}
	for _, r := range records {
		result.Transitions = append(result.Transitions, NewTraceLine(r))
	}
	if opts.Verify {
		ok, err := st.VerifySession(ctx, sessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to verify session", err)
		}
		result.Verified = &ok
	}

	if formatter.Structured() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputTraceText(formatter, result)
	}

	if result.Verified != nil && !*result.Verified {
		return NewExitError(ExitFailure, fmt.Sprintf("session %s does not verify", sessionID))
	}
	return nil
}

// query builds the store query for the filter flags.
func (o *TraceOptions) query(sessionID string) (store.TraceQuery, error) {
	q := store.TraceQuery{
		Session: sessionID,
		Object:  o.Object,
		Event:   o.Event,
		Since:   o.Since.Milliseconds(),
		Until:   o.Until.Milliseconds(),
	}
	var err error
	if o.Type != "" {
		if q.Type, err = ir.ParseEventType(o.Type); err != nil {
			return q, err
		}
	}
	if o.Transition != "" {
		if q.Transition, err = ir.ParseTransition(o.Transition); err != nil {
			return q, err
		}
	}
	return q, nil
}

func traceStats(records []ir.TransitionRecord) TraceStats {
	stats := TraceStats{Total: len(records)}
	for _, r := range records {
		switch r.Transition {
		case ir.Start:
			stats.Starts++
		case ir.Stop:
			stats.Stops++
		case ir.Pause:
			stats.Pauses++
		case ir.Resume:
			stats.Resumes++
		case ir.Abort:
			stats.Aborts++
		}
	}
	return stats
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeTraceLine prints one transition:
//
//	[3] 10s   video    presentation stop  occurring -> sleeping
func writeTraceLine(f *OutputFormatter, l TraceLine) {
	fmt.Fprintf(f.Writer, "  [%d] %-7s %s %s %s (%s -> %s)\n",
		l.Seq, l.Time, f.Cyan(l.Event), l.Type, l.Transition, f.State(l.From), f.State(l.To))
}

func outputTraceText(f *OutputFormatter, r TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Session:  %s\n", r.Session.ID)
	fmt.Fprintf(w, "Document: %s (%s)\n", r.Session.DocumentID, r.Session.DocumentHash)
	fmt.Fprintf(w, "Engine:   %s, trace %s\n", r.Session.EngineVersion, r.Session.TraceVersion)
	if r.Filter != "" {
		fmt.Fprintf(w, "Filter:   %s\n", r.Filter)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Transitions ===")
	if len(r.Transitions) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
	}
	for _, l := range r.Transitions {
		writeTraceLine(f, l)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total:   %d\n", r.Stats.Total)
	fmt.Fprintf(w, "  Starts:  %d\n", r.Stats.Starts)
	fmt.Fprintf(w, "  Stops:   %d\n", r.Stats.Stops)
	fmt.Fprintf(w, "  Pauses:  %d\n", r.Stats.Pauses)
	fmt.Fprintf(w, "  Resumes: %d\n", r.Stats.Resumes)
	fmt.Fprintf(w, "  Aborts:  %d\n", r.Stats.Aborts)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Trace hash: %s\n", r.TraceHash)
	printVerify(w, f, r.Verified)
}

func printVerify(w io.Writer, f *OutputFormatter, verified *bool) {
	switch {
	case verified == nil:
	case *verified:
		fmt.Fprintf(w, "Verify:     %s\n", f.Green("ok"))
	default:
		fmt.Fprintf(w, "Verify:     %s\n", f.Red("MISMATCH"))
	}
}
