package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// SuiteResult summarizes a run over many scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios" yaml:"total_scenarios"`
	Passed         int               `json:"passed" yaml:"passed"`
	Failed         int               `json:"failed" yaml:"failed"`
	Results        []ScenarioOutcome `json:"results" yaml:"results"`
}

// ScenarioOutcome is the result of one scenario file within a suite.
type ScenarioOutcome struct {
	Name      string   `json:"name" yaml:"name"`
	Path      string   `json:"path" yaml:"path"`
	Pass      bool     `json:"pass" yaml:"pass"`
	TraceHash string   `json:"trace_hash,omitempty" yaml:"trace_hash,omitempty"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// DiscoverScenarios expands files and directories into a sorted list of
// scenario files. Directories are searched recursively for *.yaml and
// *.yml files.
func DiscoverScenarios(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario found under paths, at most
// parallel at a time (unlimited if parallel <= 0). Each scenario runs on
// its own engine and in-memory store, so they are independent. Load and
// execution failures are reported as failed outcomes; only discovery
// errors and cancellation abort the suite.
func RunSuite(ctx context.Context, paths []string, parallel int) (*SuiteResult, error) {
	files, err := DiscoverScenarios(paths)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ScenarioOutcome, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	var mu sync.Mutex
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := runScenarioFile(path)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SuiteResult{TotalScenarios: len(files), Results: outcomes}
	for _, out := range outcomes {
		if out.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func runScenarioFile(path string) ScenarioOutcome {
	out := ScenarioOutcome{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return out
	}
	out.Pass = result.Pass
	out.TraceHash = result.TraceHash
	out.Errors = result.Errors
	return out
}
