package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperplay/internal/compiler"
	"github.com/roach88/hyperplay/internal/ir"
)

// ValidationResult holds validation results for one document.
type ValidationResult struct {
	Path         string                      `json:"path" yaml:"path"`
	Document     string                      `json:"document,omitempty" yaml:"document,omitempty"`
	DocumentHash string                      `json:"document_hash,omitempty" yaml:"document_hash,omitempty"`
	Valid        bool                        `json:"valid" yaml:"valid"`
	Errors       []compiler.ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings     []compiler.CycleWarning    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Compile and check documents without playing them",
		Long: `Compile CUE documents and check their structure.

Reports every structural error (unresolved ports and binds, bad switch
rules, negated predicates, ...) with its E1xx code, and warns about link
cycles that may restart themselves forever.

A document is a .cue file or a directory holding one CUE package, with a
top-level "document" field.

Exit codes:
  0 - All documents valid
  1 - One or more documents invalid
  2 - Command error (missing files, unreadable CUE)

With --watch the command keeps running after the first pass and checks
each document again whenever one of its .cue files changes.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd, watch)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Validate again whenever a document changes")
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command, watch bool) error {
	formatter := opts.formatter(cmd)

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		result, err := ValidateDocument(path)
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) && loadErr.Code != ErrCodeCompile {
				_ = formatter.Error(loadErr.Code, loadErr.Message, map[string]string{"path": path})
				return WrapExitError(ExitCommandError, "cannot load "+path, err)
			}
			return WrapExitError(ExitCommandError, "cannot validate "+path, err)
		}
		formatter.VerboseLog("%s: %d error(s), %d warning(s)", path, len(result.Errors), len(result.Warnings))
		if !result.Valid {
			invalid++
		}
		results = append(results, result)
	}

	if formatter.Structured() {
		status := "ok"
		if invalid > 0 {
			status = "error"
		}
		if err := formatter.Encode(CLIResponse{Status: status, Data: results}); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, results)
	}

	if watch {
		return watchDocuments(commandContext(cmd), formatter, paths)
	}
	if invalid > 0 {
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d document(s) invalid", invalid, len(results)))
	}
	return nil
}

// ValidateDocument loads one document and runs the structural checks and
// cycle analysis on it. Compile failures are reported as a validation
// error with ErrCodeCompile rather than as an error; only load failures
// (missing files, unreadable CUE) return an error.
func ValidateDocument(path string) (ValidationResult, error) {
	result := ValidationResult{Path: path}

	loaded, err := LoadDocument(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code == ErrCodeCompile {
			result.Errors = []compiler.ValidationError{{
				Field:   "document",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr),
			}}
			return result, nil
		}
		return result, err
	}

	doc := loaded.Document
	result.Document = doc.ID
	if hash, err := ir.DocumentHash(doc); err == nil {
		result.DocumentHash = hash
	}
	result.Errors = compiler.Validate(doc)
	result.Warnings = compiler.AnalyzeCycles(doc)
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func watchDocuments(ctx context.Context, f *OutputFormatter, paths []string) error {
	w, err := newDocumentWatcher(paths, defaultWatchDebounce)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot watch documents", err)
	}
	defer w.Close()

	if !f.Structured() {
		fmt.Fprintf(f.Writer, "Watching %d path(s) for changes. Press Ctrl-C to stop.\n", len(paths))
	}
	return w.Run(ctx, func(path string) { revalidate(f, path) })
}

// revalidate reports one changed document. Load failures are printed and
// the watch goes on: the file may be half written.
func revalidate(f *OutputFormatter, path string) {
	result, err := ValidateDocument(path)
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = f.Error(code, err.Error(), map[string]string{"path": path})
		return
	}
	if f.Structured() {
		status := "ok"
		if !result.Valid {
			status = "error"
		}
		_ = f.Encode(CLIResponse{Status: status, Data: []ValidationResult{result}})
		return
	}
	outputValidateText(f, []ValidationResult{result})
}

// getLineFromCuePos extracts the line number of a load error's position.
func getLineFromCuePos(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

func outputValidateText(f *OutputFormatter, results []ValidationResult) {
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(f.Writer, "%s %s (%s)\n", f.Green("\u2713"), r.Path, r.Document)
		} else {
			fmt.Fprintf(f.Writer, "%s %s\n", f.Red("\u2717"), r.Path)
			for _, e := range r.Errors {
				if e.Line > 0 {
					fmt.Fprintf(f.Writer, "  line %d\n", e.Line)
				}
				fmt.Fprintf(f.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
			}
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(f.Writer, "  %s %s\n", f.Yellow("warning:"), w.Message)
		}
		if f.Verbose && r.DocumentHash != "" {
			fmt.Fprintf(f.Writer, "  hash %s\n", r.DocumentHash)
		}
	}
}
