package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/runtime"
	"github.com/ormasoftchile/procrun/pkg/schema"
	"github.com/ormasoftchile/procrun/pkg/vars"
)

// Report is the result of playing a scenario.
type Report struct {
	Outcome  Outcome
	RunErr   error
	Failures []string
}

// Passed reports whether the run met every expectation.
func (r *Report) Passed() bool { return len(r.Failures) == 0 }

// Options configure Play. Zero values are fine.
type Options struct {
	Console *console.Printer
	Logger  *slog.Logger
	Trace   *runtime.TraceWriter
}

// Play runs p against the scenario and checks the outcome. Leftover recorded
// commands or answers count as failures: a scenario must describe the run
// exactly.
func Play(ctx context.Context, p *schema.Procedure, s *Scenario, opts Options) *Report {
	exec := NewExecutor(s)
	prompter := s.Prompter()
	if opts.Console != nil {
		prompter.Out = opts.Console.Out
	}

	e := runtime.NewEngine(p, exec, prompter, opts.Console)
	e.Vars = vars.FromMap(s.Vars)
	e.Mode = "replay"
	e.Trace = opts.Trace
	if opts.Logger != nil {
		e.Logger = opts.Logger
	}

	err := e.Run(ctx)
	out := Outcome{
		Status:   runtime.RunCompleted,
		ExitCode: runtime.ExitCode(err),
		Vars:     make(map[string]string),
	}
	if err != nil {
		out.Status = runtime.RunAborted
	}
	for _, name := range e.Vars.Names() {
		out.Vars[name] = e.Vars.String(name)
	}

	report := &Report{Outcome: out, RunErr: err}
	report.Failures = s.Expect.Check(out)
	for _, c := range exec.Unused() {
		report.Failures = append(report.Failures, fmt.Sprintf("recorded command never ran: %s", c))
	}
	if n := prompter.Remaining(); n > 0 {
		report.Failures = append(report.Failures, fmt.Sprintf("%d recorded answer(s) never used", n))
	}
	if s.Expect == nil && err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("run aborted: %v", err))
	}
	return report
}
