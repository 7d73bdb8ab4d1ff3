package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/replay"
	"github.com/ormasoftchile/procrun/pkg/runtime"
)

var (
	testScenario string
	testTrace    string
	testQuiet    bool
)

var testCmd = &cobra.Command{
	Use:   "test [procedure]",
	Short: "Replay a recorded scenario and check its expectations",
	Args:  cobra.ExactArgs(1),
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	p, err := loadProcedure(out, args[0])
	if err != nil {
		return err
	}
	s, err := replay.LoadScenario(testScenario)
	if err != nil {
		return err
	}

	opts := replay.Options{Console: out}
	if testQuiet {
		opts.Console = console.New(io.Discard, io.Discard)
	}
	if testTrace != "" {
		tw, err := runtime.NewTraceWriter(testTrace)
		if err != nil {
			return err
		}
		defer tw.Close()
		opts.Trace = tw
	}

	start := time.Now()
	report := replay.Play(context.Background(), p, s, opts)
	elapsed := time.Since(start).Round(time.Millisecond)

	out.Blank()
	if report.Passed() {
		out.Success("%s PASS %s (%s, exit code %d, %s)",
			console.GlyphPassed, testScenario, report.Outcome.Status, report.Outcome.ExitCode, elapsed)
		return nil
	}
	out.Error("%s FAIL %s (%s, exit code %d, %s)",
		console.GlyphFailed, testScenario, report.Outcome.Status, report.Outcome.ExitCode, elapsed)
	for _, f := range report.Failures {
		out.Plain("  - %s", f)
	}
	return reported(fmt.Errorf("scenario %s failed", testScenario))
}
