package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/procrun/pkg/catalog"
	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/providers"
	"github.com/ormasoftchile/procrun/pkg/replay"
	"github.com/ormasoftchile/procrun/pkg/runtime"
	"github.com/ormasoftchile/procrun/pkg/schema"
	"github.com/ormasoftchile/procrun/pkg/vars"
)

var (
	runMode     string
	runScenario string
	runVars     []string
	runTrace    string
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run [procedure]",
	Short: "Execute a procedure by path or name",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	p, err := loadProcedure(out, args[0])
	if err != nil {
		return err
	}

	seed, err := parseVars(runVars)
	if err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if runVerbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var trace *runtime.TraceWriter
	if runTrace != "" {
		trace, err = runtime.NewTraceWriter(runTrace)
		if err != nil {
			return err
		}
		defer trace.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch runMode {
	case "real", "dry-run":
	case "replay":
		return runReplay(ctx, out, p, seed, logger, trace)
	default:
		return fmt.Errorf("unknown mode: %q", runMode)
	}

	prompter, closePrompter, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closePrompter()

	var executor providers.CommandExecutor = &providers.ShellExecutor{}
	if runMode == "dry-run" {
		executor = &providers.DryRunExecutor{}
	}

	e := runtime.NewEngine(p, executor, prompter, out)
	e.Vars = vars.FromMap(seed)
	e.Mode = runMode
	e.Logger = logger
	e.Trace = trace
	return e.Run(ctx)
}

// runReplay plays the procedure against a recorded scenario. Values given
// with --var override the scenario's own vars.
func runReplay(ctx context.Context, out *console.Printer, p *schema.Procedure, seed map[string]string, logger *slog.Logger, trace *runtime.TraceWriter) error {
	if runScenario == "" {
		return fmt.Errorf("--scenario is required for replay mode")
	}
	s, err := replay.LoadScenario(runScenario)
	if err != nil {
		return err
	}
	if s.Vars == nil {
		s.Vars = make(map[string]string)
	}
	for k, v := range seed {
		s.Vars[k] = v
	}

	report := replay.Play(ctx, p, s, replay.Options{Console: out, Logger: logger, Trace: trace})
	if report.RunErr == nil {
		for _, f := range report.Failures {
			out.Warn("%s", f)
		}
	}
	return report.RunErr
}

// loadProcedure resolves a path or name, validates the document and prints
// any warnings. Definition errors are reported before any step runs.
func loadProcedure(out *console.Printer, name string) (*schema.Procedure, error) {
	path, err := catalog.Resolve(name, catalog.Dir(procDir))
	if err != nil {
		var nf *catalog.NotFoundError
		if errors.As(err, &nf) {
			out.Error("Procedure file not found: %s", nf.Name)
			out.Plain("Searched in: %s", nf.Dir)
			return nil, reported(err)
		}
		return nil, err
	}

	p, errs := schema.ValidateFile(path)
	printWarnings(out, errs)
	if schema.HasErrors(errs) {
		printErrors(out, errs)
		return nil, reported(errors.New("invalid procedure"))
	}
	return p, nil
}

func printWarnings(out *console.Printer, errs []*schema.ValidationError) {
	for _, e := range errs {
		if e.Severity != "warning" {
			continue
		}
		out.Warn("⚠ [%s] %s", e.Phase, e.Message)
		if e.Path != "" {
			out.Plain("    at: %s", e.Path)
		}
	}
}

func printErrors(out *console.Printer, errs []*schema.ValidationError) {
	var n int
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	out.Stderr("Validation failed: %d error(s)", n)
	i := 0
	for _, e := range errs {
		if e.Severity == "warning" {
			continue
		}
		i++
		fmt.Fprintf(out.Err, "  %d. [%s] %s\n", i, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(out.Err, "     at: %s\n", e.Path)
		}
	}
}

// parseVars turns repeated key=value flags into a map.
func parseVars(kvs []string) (map[string]string, error) {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		m[k] = v
	}
	return m, nil
}

// newPrompter uses readline on an interactive terminal and a plain line
// reader otherwise, so piped answers work.
func newPrompter(in io.Reader, out io.Writer) (providers.Prompter, func(), error) {
	if f, ok := in.(*os.File); ok && f == os.Stdin && readline.IsTerminal(int(f.Fd())) {
		rp, err := providers.NewReadlinePrompter()
		if err != nil {
			return nil, nil, fmt.Errorf("init prompt: %w", err)
		}
		return rp, func() { rp.Close() }, nil
	}
	return providers.NewLinePrompter(in, out), func() {}, nil
}
