package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/hyperplay/internal/compiler"
	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
	"github.com/roach88/hyperplay/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Realtime    bool
	MetricsAddr string
	Keys        []string
	Session     string

	// Players allows overriding the player factory (for testing).
	// If nil, the engine's null players are used.
	Players engine.PlayerFactory

	// SessionGenerator allows overriding session ids (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionIDGenerator
}

// KeyPress is a key scheduled at a document time, parsed from "KEY@time".
type KeyPress struct {
	Key string
	At  time.Duration
}

// PlayResult is the structured output of play.
type PlayResult struct {
	Session      string      `json:"session" yaml:"session"`
	Document     string      `json:"document" yaml:"document"`
	DocumentHash string      `json:"document_hash" yaml:"document_hash"`
	Finished     bool        `json:"finished" yaml:"finished"`
	Elapsed      string      `json:"elapsed" yaml:"elapsed"`
	TraceHash    string      `json:"trace_hash" yaml:"trace_hash"`
	Database     string      `json:"database,omitempty" yaml:"database,omitempty"`
	Errors       []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Trace        []TraceLine `json:"trace" yaml:"trace"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <document>",
		Short: "Play a document headless and print its trace",
		Long: `Play a document with null players and print every accepted transition.

By default time is simulated: the engine ticks in --tick steps until the
document ends or --duration elapses, so a run is instant and repeatable.
With --realtime the engine ticks on a wall clock and can expose
Prometheus metrics on --metrics-addr while it plays.

Keys are scheduled with --key KEY@time and are pressed and released at
that document time. With --db every transition is recorded in a SQLite
trace store under a new session.

Examples:
  hyperplay play show.cue
  hyperplay play show.cue --duration 1m --key RED@2s --key OK@5.5s
  hyperplay play show.cue --db trace.db --format json
  hyperplay play show.cue --realtime --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().Duration("duration", 30*time.Second, "maximum document time to play")
	cmd.Flags().Duration("tick", 40*time.Millisecond, "engine tick interval")
	cmd.Flags().String("db", "", "path to SQLite trace database (optional)")
	cmd.Flags().Int("max-steps", engine.DefaultMaxSteps, "maximum steps per propagation")

	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "tick on the wall clock instead of simulated time")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (realtime only)")
	cmd.Flags().StringArrayVar(&opts.Keys, "key", nil, "press a key at a document time, e.g. RED@2s (repeatable)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: new UUIDv7)")

	return cmd
}

// ParseKeyPress parses "KEY@time". The time accepts document time syntax
// ("2s", "1.5").
func ParseKeyPress(s string) (KeyPress, error) {
	key, at, ok := strings.Cut(s, "@")
	if !ok || key == "" || at == "" {
		return KeyPress{}, fmt.Errorf("invalid key %q: want KEY@time", s)
	}
	d, err := ir.ParseTime(at)
	if err != nil {
		return KeyPress{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return KeyPress{Key: key, At: d}, nil
}

// traceCollector keeps every record the engine reports. The engine calls
// it from its own goroutine when playing in real time.
type traceCollector struct {
	mu      sync.Mutex
	records []ir.TransitionRecord
}

func (c *traceCollector) OnTransition(rec ir.TransitionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *traceCollector) Records() []ir.TransitionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ir.TransitionRecord(nil), c.records...)
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.Config
	if cfg == nil {
		return NewExitError(ExitCommandError, "configuration not loaded")
	}

	keys := make([]KeyPress, 0, len(opts.Keys))
	for _, raw := range opts.Keys {
		kp, err := ParseKeyPress(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --key", err)
		}
		keys = append(keys, kp)
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].At < keys[j].At })

	loaded, err := LoadDocument(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}
	doc := loaded.Document
	if errs := compiler.Validate(doc); len(errs) > 0 {
		_ = formatter.Error(errs[0].Code, errs[0].Message, errs)
		return NewExitError(ExitFailure, fmt.Sprintf("document %s is invalid (%d error(s))", doc.ID, len(errs)))
	}
	docHash, err := ir.DocumentHash(doc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash document", err)
	}

	sessionID := opts.Session
	if sessionID == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		sessionID = gen.Generate()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	collector := &traceCollector{}
	engOpts := []engine.Option{
		engine.WithMaxSteps(cfg.MaxSteps),
		engine.WithObserver(collector),
	}
	if opts.Players != nil {
		engOpts = append(engOpts, engine.WithPlayerFactory(opts.Players))
	}

	var rec *store.Recorder
	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		sess, err := store.NewSession(sessionID, doc)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		rec, err = store.NewRecorder(ctx, st, sess)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		engOpts = append(engOpts, engine.WithObserver(rec))
	}

	var metrics *engine.Metrics
	if opts.MetricsAddr != "" {
		if !opts.Realtime {
			slog.Warn("ignoring --metrics-addr without --realtime")
		} else {
			metrics = engine.NewMetrics("hyperplay")
			engOpts = append(engOpts, engine.WithMetrics(metrics))
		}
	}

	eng := engine.New(doc, engOpts...)
	slog.Info("playing document", "document", doc.ID, "session", sessionID, "duration", cfg.Duration, "tick", cfg.Tick)

	var playErrs []error
	var elapsed time.Duration
	if opts.Realtime {
		elapsed, playErrs = playRealtime(ctx, eng, cfg, keys, opts.MetricsAddr, metrics)
	} else {
		elapsed, playErrs = playSimulated(eng, cfg, keys)
	}

	result := PlayResult{
		Session:      sessionID,
		Document:     doc.ID,
		DocumentHash: docHash,
		Finished:     eng.Finished(),
		Elapsed:      elapsed.String(),
		Database:     cfg.StorePath,
	}
	records := collector.Records()
	for _, r := range records {
		result.Trace = append(result.Trace, NewTraceLine(r))
	}
	if rec != nil {
		hash, err := rec.Finish()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record trace", err)
		}
		result.TraceHash = hash
	} else if result.TraceHash, err = ir.TraceHash(records); err != nil {
		return WrapExitError(ExitCommandError, "failed to hash trace", err)
	}
	for _, e := range playErrs {
		result.Errors = append(result.Errors, e.Error())
	}

	if formatter.Structured() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputPlayText(formatter, result)
	}

	if len(playErrs) > 0 {
		return WrapExitError(ExitFailure, "playback failed", errors.Join(playErrs...))
	}
	return nil
}

// playSimulated advances document time in tick steps without waiting.
// Keys due by a tick are pressed and released right after it.
func playSimulated(eng *engine.Engine, cfg *Config, keys []KeyPress) (time.Duration, []error) {
	var errs []error
	if _, err := eng.Start(); err != nil {
		return 0, []error{err}
	}

	var elapsed time.Duration
	next := 0
	for elapsed < cfg.Duration && !eng.Finished() {
		diff := min(cfg.Tick, cfg.Duration-elapsed)
		elapsed += diff
		if err := eng.Tick(elapsed, diff); err != nil {
			slog.Error("tick failed", "time", elapsed, "error", err)
			errs = append(errs, err)
		}
		for next < len(keys) && keys[next].At <= elapsed {
			errs = append(errs, pressKey(eng, keys[next].Key)...)
			next++
		}
	}
	eng.Stop()
	return elapsed, errs
}

func pressKey(eng *engine.Engine, key string) []error {
	var errs []error
	for _, pressed := range []bool{true, false} {
		if _, err := eng.PostKey(key, pressed); err != nil {
			slog.Error("key failed", "key", key, "pressed", pressed, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// playRealtime runs the engine loop on the wall clock, alongside the
// metrics server when one is configured. It returns when the document
// ends, the duration elapses or the process is interrupted.
func playRealtime(parent context.Context, eng *engine.Engine, cfg *Config, keys []KeyPress, metricsAddr string, metrics *engine.Metrics) (time.Duration, []error) {
	if _, err := eng.Start(); err != nil {
		return 0, []error{err}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	for _, k := range keys {
		timer := time.AfterFunc(k.At, func() {
			eng.Enqueue(engine.KeySignal(k.Key, true))
			eng.Enqueue(engine.KeySignal(k.Key, false))
		})
		defer timer.Stop()
	}

	begin := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := eng.Run(gctx, cfg.Tick)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	if metrics != nil {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			slog.Info("serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	eng.Stop()
	elapsed := time.Since(begin).Round(time.Millisecond)
	if err != nil {
		return elapsed, []error{err}
	}
	return elapsed, nil
}

func outputPlayText(f *OutputFormatter, r PlayResult) {
	for _, line := range r.Trace {
		writeTraceLine(f, line)
	}
	status := f.Yellow("stopped")
	if r.Finished {
		status = f.Green("finished")
	}
	fmt.Fprintf(f.Writer, "\n%s %s after %s, %d transition(s)\n", f.Cyan(r.Document), status, r.Elapsed, len(r.Trace))
	fmt.Fprintf(f.Writer, "session %s\n", r.Session)
	fmt.Fprintf(f.Writer, "trace   %s\n", r.TraceHash)
	for _, e := range r.Errors {
		fmt.Fprintf(f.Writer, "%s %s\n", f.Red("error:"), e)
	}
}
