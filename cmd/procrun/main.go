// Package main provides the procrun binary: an interactive runner for guided
// YAML procedures.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/procrun/pkg/runtime"
	"github.com/ormasoftchile/procrun/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv(".env")
	if err := rootCmd.Execute(); err != nil {
		var ae *runtime.AbortError
		var re *reportedError
		if !errors.As(err, &ae) && !errors.As(err, &re) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(runtime.ExitCode(err))
	}
}

// reportedError marks an error whose message has already been shown to the
// operator.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error { return &reportedError{err: err} }

// loadDotEnv reads KEY=VALUE lines from path and sets any variable not
// already present in the environment. Comments (#) and blanks are skipped.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
}

var procDir string

var rootCmd = &cobra.Command{
	Use:           "procrun",
	Short:         "Guided procedure runner",
	Long:          "procrun walks an operator through a YAML procedure: prompts, commands, checks and choices, one step at a time.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the procedure JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "procrun %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&procDir, "dir", "", "Procedure directory (default $PROCEDURE_DIR or ./procedures)")

	runCmd.Flags().StringVar(&runMode, "mode", "real", "Execution mode: real, dry-run, or replay")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Path to scenario YAML (required for replay)")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a variable (key=value), repeatable")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL trace of step results to this file")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log engine diagnostics to stderr")

	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the Markdown source instead of rendering it")

	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Path to scenario YAML (required)")
	testCmd.Flags().StringVar(&testTrace, "trace", "", "Write a JSONL trace of step results to this file")
	testCmd.Flags().BoolVar(&testQuiet, "quiet", false, "Hide the replayed console output")
	testCmd.MarkFlagRequired("scenario")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
