package runtime

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/eval"
	"github.com/ormasoftchile/procrun/pkg/providers"
	"github.com/ormasoftchile/procrun/pkg/schema"
	"github.com/ormasoftchile/procrun/pkg/vars"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxxxxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// handlerFunc executes the body of one step. A non-nil error aborts the run;
// non-fatal failures are recorded on the result instead.
type handlerFunc func(e *Engine, ctx context.Context, step *schema.Step, res *StepResult) error

// handlers maps each step type to its handler. Types missing here go through
// the unknown-type confirmation path.
var handlers = map[schema.StepType]handlerFunc{
	schema.StepInput:      (*Engine).runInput,
	schema.StepCommand:    (*Engine).runCommandStep,
	schema.StepValidation: (*Engine).runValidation,
	schema.StepChoice:     (*Engine).runChoice,
	schema.StepFileCheck:  (*Engine).runFileCheck,
}

// Engine drives one execution of a procedure. It is single-use and not safe
// for concurrent use: steps run strictly one after another.
type Engine struct {
	Procedure *schema.Procedure
	Vars      *vars.Context
	Executor  providers.CommandExecutor
	Prompter  providers.Prompter
	Console   *console.Printer
	Evaluator *eval.Evaluator
	Trace     *TraceWriter // optional
	Logger    *slog.Logger
	RunID     string
	Mode      string // real, dry-run, replay

	results []*StepResult
	counts  StepsSummary
}

// NewEngine creates an engine with an empty context, the default evaluator,
// and a discarding logger. Callers may replace any exported field before Run.
func NewEngine(p *schema.Procedure, executor providers.CommandExecutor, prompter providers.Prompter, out *console.Printer) *Engine {
	if out == nil {
		out = console.Stdio()
	}
	return &Engine{
		Procedure: p,
		Vars:      vars.New(),
		Executor:  executor,
		Prompter:  prompter,
		Console:   out,
		Evaluator: eval.Default,
		Logger:    slog.New(slog.DiscardHandler),
		RunID:     GenerateRunID(),
		Mode:      "real",
	}
}

// Results returns the recorded step results in execution order.
func (e *Engine) Results() []*StepResult { return e.results }

// Summary returns the step counts so far.
func (e *Engine) Summary() StepsSummary { return e.counts }

// Run executes the procedure top to bottom, once. It returns nil when every
// step was processed, or an *AbortError when a step's failure policy ends
// the run. Use ExitCode to turn the result into a process status.
func (e *Engine) Run(ctx context.Context) (err error) {
	p := e.Procedure
	started := time.Now()
	log := e.Logger.With("run_id", e.RunID, "procedure", p.Name)
	log.Info("run started", "steps", len(p.Steps), "mode", e.Mode)
	defer func() { e.finish(log, started, err) }()

	e.Console.Banner("Starting procedure: %s", p.Name)
	e.Console.Text(p.Description)
	e.Console.Blank()

	for i := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := &p.Steps[i]
		num := i + 1
		res := e.newResult(num, step)
		stepLog := log.With("step_id", step.ID, "step_type", string(step.Type))

		if step.RunIf != "" {
			run, cerr := e.evalCondition(step.RunIf)
			if cerr != nil {
				e.Console.Error("Error evaluating run_if condition: %v", cerr)
				stepLog.Warn("run_if failed", "error", cerr)
				if step.ShouldExitOnFailure() {
					res.fail("run_if: %v", cerr)
					if err := e.record(res); err != nil {
						return err
					}
					return e.abort(ErrConditionEvaluation, step.ID, 1, cerr)
				}
				res.skip(fmt.Sprintf("run_if: %v", cerr))
				if err := e.record(res); err != nil {
					return err
				}
				continue
			}
			if !run {
				e.Console.Warn("Skipping step %d: %s (condition not met)", num, step.Title())
				stepLog.Debug("step skipped", "run_if", step.RunIf)
				res.skip("condition not met")
				if err := e.record(res); err != nil {
					return err
				}
				continue
			}
		}

		e.Console.Heading("Step %d: %s", num, step.Title())
		if step.Description != "" {
			e.Console.Text(step.Description)
		}

		stepLog.Debug("step started")
		var herr error
		if h, ok := handlers[step.Type]; ok {
			herr = h(e, ctx, step, res)
		} else {
			herr = e.unknownType(step, res)
		}
		if herr != nil && res.Status != StatusFailed {
			res.fail("%v", herr)
		}
		if err := e.record(res); err != nil {
			return err
		}
		if herr != nil {
			stepLog.Warn("step aborted run", "error", herr)
			return herr
		}
		stepLog.Debug("step finished", "status", res.Status)

		e.Console.Blank()
	}

	e.Console.Banner("Procedure completed successfully!")
	return nil
}

// unknownType asks the operator whether to carry on past a step whose type
// has no handler. Declining (the default) aborts the run.
func (e *Engine) unknownType(step *schema.Step, res *StepResult) error {
	e.Console.Stderr("Unknown step type: %s", step.Type)
	ok, err := e.Prompter.Confirm("Continue anyway?", false)
	if err != nil {
		return e.abort(ErrUnknownStepType, step.ID, 1, err)
	}
	if !ok {
		return e.abort(ErrUnknownStepType, step.ID, 1, fmt.Errorf("%q declined by operator", step.Type))
	}
	res.skip(fmt.Sprintf("unknown step type %q", step.Type))
	return nil
}

// evalCondition substitutes placeholders as quoted literals and evaluates
// the expression for truthiness.
func (e *Engine) evalCondition(expression string) (bool, error) {
	substituted := eval.Substitute(expression, e.Vars, eval.Quoted)
	ok, err := e.Evaluator.EvalBool(substituted)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// expand substitutes placeholders as raw text.
func (e *Engine) expand(s string) string {
	return eval.Substitute(s, e.Vars, eval.Raw)
}

// set writes a variable into the context and records it on the step result.
func (e *Engine) set(res *StepResult, name string, value any) {
	e.Vars.Set(name, value)
	if res.Vars == nil {
		res.Vars = make(map[string]string)
	}
	res.Vars[name] = vars.Format(value)
	e.Logger.Debug("var set", "run_id", e.RunID, "step_id", res.StepID, "name", name)
}

func (e *Engine) abort(kind error, stepID string, code int, err error) error {
	return &AbortError{Kind: kind, StepID: stepID, Code: code, Err: err}
}

func (e *Engine) newResult(num int, step *schema.Step) *StepResult {
	return &StepResult{
		RunID:     e.RunID,
		StepID:    step.ID,
		StepIndex: num,
		Type:      string(step.Type),
		Status:    StatusPassed,
		StartedAt: time.Now(),
	}
}

// record closes a step result, counts it, and appends it to the trace.
func (e *Engine) record(res *StepResult) error {
	res.EndedAt = time.Now()
	e.results = append(e.results, res)
	e.counts.add(res.Status)
	if e.Trace == nil {
		return nil
	}
	if err := e.Trace.WriteStep(res); err != nil {
		return fmt.Errorf("write trace for step %q: %w", res.StepID, err)
	}
	return nil
}

func (e *Engine) finish(log *slog.Logger, started time.Time, err error) {
	summary := &RunSummary{
		Procedure: e.Procedure.Name,
		Mode:      e.Mode,
		Status:    RunCompleted,
		ExitCode:  ExitCode(err),
		Steps:     e.counts,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
	if err != nil {
		summary.Status = RunAborted
		summary.Error = err.Error()
		if ae, ok := err.(*AbortError); ok {
			summary.StepID = ae.StepID
		}
	}
	log.Info("run finished", "status", summary.Status, "exit_code", summary.ExitCode,
		"passed", e.counts.Passed, "failed", e.counts.Failed, "skipped", e.counts.Skipped)
	if e.Trace == nil {
		return
	}
	if terr := e.Trace.WriteSummary(e.RunID, summary); terr != nil {
		log.Error("write run summary", "error", terr)
	}
}
