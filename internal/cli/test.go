package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperplay/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Parallel int
	Filter   string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario|dir>...",
		Short: "Run scenario files against the engine",
		Long: `Run YAML scenarios through the engine and check their assertions.

Each scenario plays its document with a deterministic clock and recording
players, then checks the resulting trace, event states, properties and
player calls. Directories are searched recursively for .yaml/.yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hyperplay test ./scenarios
  hyperplay test ./scenarios --filter "menu*"
  hyperplay test ./scenarios --parallel 4 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run at once (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenario files by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := harness.DiscoverScenarios(paths)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return NewExitError(ExitCommandError, nf.Error())
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	if len(files) == 0 {
		if formatter.Structured() {
			return formatter.Success(harness.SuiteResult{Results: []harness.ScenarioOutcome{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	formatter.VerboseLog("running %d scenario(s)", len(files))
	result, err := harness.RunSuite(commandContext(cmd), files, opts.Parallel)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run aborted", err)
	}

	if formatter.Structured() {
		status := "ok"
		if result.Failed > 0 {
			status = "error"
		}
		if err := formatter.Encode(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.TotalScenarios))
	}
	return nil
}

// filterScenarios keeps files whose name, without extension, matches
// pattern. An empty pattern keeps everything.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	kept := make([]string, 0, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func outputTestText(f *OutputFormatter, result *harness.SuiteResult) {
	w := f.Writer
	for _, r := range result.Results {
		if r.Pass {
			fmt.Fprintf(w, "%s %s\n", f.Green("PASS"), r.Name)
			if f.Verbose {
				fmt.Fprintf(w, "     %s\n", r.Path)
				fmt.Fprintf(w, "     trace %s\n", r.TraceHash)
			}
			continue
		}
		fmt.Fprintf(w, "%s %s (%s)\n", f.Red("FAIL"), r.Name, r.Path)
		for _, e := range r.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "     %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d passed, %d failed, %d total", result.Passed, result.Failed, result.TotalScenarios)
	if result.Failed > 0 {
		fmt.Fprintln(w, f.Red(summary))
	} else {
		fmt.Fprintln(w, f.Green(summary))
	}
}
