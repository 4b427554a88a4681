package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeq/internal/parity"
)

// ParityOptions holds flags for the parity command.
type ParityOptions struct {
	*RootOptions
	Update   bool     // regenerate golden files
	Filter   string   // scenario filter (glob pattern)
	Backends []string // backends to compare
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ParityResult holds the overall parity result.
type ParityResult struct {
	Backends  []string         `json:"backends"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewParityCommand creates the parity command.
func NewParityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parity <scenarios-dir>",
		Short: "Check that every backend agrees on a set of scenarios",
		Long: `Run YAML parity scenarios against several backends and compare their
outcomes step by step. A scenario passes when every backend agrees, every
expectation holds and the trace matches golden/<name>.golden next to the
scenarios (when that file exists).

Postgres is included with --backends postgres and takes its DSN from --db.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  scopeq parity ./scenarios
  scopeq parity ./scenarios --filter "null_*"
  scopeq parity ./scenarios --update
  scopeq parity ./scenarios --backends array,postgres --db postgres://localhost/scopeq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParity(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringSliceVar(&opts.Backends, "backends", []string{"array", "sqlite"}, "backends to compare")

	return cmd
}

func runParity(opts *ParityOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid filter pattern: %v", err), nil)
	}

	backends, err := parity.ParseBackends(opts.Backends, opts.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	scenarios, err := parity.LoadDir(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}

	result := ParityResult{Scenarios: []ScenarioResult{}}
	for _, b := range backends {
		result.Backends = append(result.Backends, b.Name)
	}

	w := cmd.OutOrStdout()
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		sr := runParityScenario(opts, dir, s, backends, cmd)
		if opts.Format != "json" {
			printScenario(w, sr, opts.Update)
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputParityJSON(cmd, result)
	}
	return outputParityText(cmd, result)
}

// runParityScenario runs one scenario and checks or updates its golden file.
func runParityScenario(opts *ParityOptions, dir string, s *parity.Scenario, backends []parity.Backend, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: s.Name}

	result, err := parity.Run(cmd.Context(), s, backends...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	snapshot, err := parity.Snapshot(s.Name, result)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to snapshot trace: %v", err))
		return sr
	}

	goldenPath := goldenFilePath(dir, s.Name)
	if opts.Update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, snapshot) {
			sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenario(w io.Writer, sr ScenarioResult, updated bool) {
	if !sr.Pass {
		fmt.Fprintf(w, "\u2717 %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if updated {
		fmt.Fprintf(w, "\u2713 %s (golden updated)\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "\u2713 %s\n", sr.Name)
}

// outputParityJSON outputs the parity result as JSON.
func outputParityJSON(cmd *cobra.Command, result ParityResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_PARITY_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputParityText outputs the parity summary as text.
func outputParityText(cmd *cobra.Command, result ParityResult) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Parity Summary (%v): %d passed, %d failed, %d total\n",
		result.Backends, result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "\u2713 All scenarios passed")
	return nil
}
