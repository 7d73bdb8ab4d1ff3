package runtime

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ormasoftchile/procrun/pkg/schema"
)

// runInput prompts until the answer satisfies the step's validation pattern
// and stores it under the step id. A mismatch is never fatal.
func (e *Engine) runInput(ctx context.Context, step *schema.Step, res *StepResult) error {
	label := step.Prompt
	if label == "" {
		label = "Enter " + step.ID
	}
	label = e.expand(label)
	def := e.expand(step.Default)

	var re *regexp.Regexp
	if step.Validation != nil && step.Validation.Pattern != "" {
		var err error
		re, err = compileAnchored(step.Validation.Pattern)
		if err != nil {
			e.Console.Error("Invalid validation pattern: %v", err)
			return e.abort(ErrInputValidation, step.ID, 1, err)
		}
	}

	for {
		value, err := e.Prompter.Prompt(label, def)
		if err != nil {
			return e.abort(ErrInputClosed, step.ID, 1, err)
		}
		if re != nil && !re.MatchString(value) {
			msg := step.Validation.Error
			if msg == "" {
				msg = "Invalid input. Must match pattern: " + step.Validation.Pattern
			}
			e.Console.Error("%s", msg)
			e.Logger.Debug("input rejected", "run_id", e.RunID, "step_id", step.ID,
				"error", fmt.Errorf("%w: pattern %q", ErrInputValidation, step.Validation.Pattern))
			continue
		}
		e.set(res, step.ID, value)
		return nil
	}
}

func (e *Engine) runCommandStep(ctx context.Context, step *schema.Step, res *StepResult) error {
	return e.runCommand(ctx, step, res)
}

// runCommand runs a command line and classifies the outcome. Output is
// always captured; show_output only controls whether it is echoed.
//
// Success starts as "any pass_on_match pattern matched" (true when none are
// given), is forced false by any fail_on_match match, and, under
// exit_on_error, is forced false by a non-zero exit. The result is stored
// as <id>_success.
func (e *Engine) runCommand(ctx context.Context, step *schema.Step, res *StepResult) error {
	command := e.expand(step.Command)
	e.Console.Text("Executing: " + command)
	e.Logger.Debug("executing command", "run_id", e.RunID, "step_id", step.ID, "command", command)

	exitOnError := step.ShouldExitOnError()
	result, err := e.Executor.Execute(ctx, command)
	if err != nil {
		return e.commandError(step, res, err)
	}

	stdout := strings.TrimSpace(string(result.Stdout))
	stderr := strings.TrimSpace(string(result.Stderr))
	if step.OutputVar != "" {
		e.set(res, step.OutputVar, stdout)
	}
	if step.ErrorVar != "" {
		e.set(res, step.ErrorVar, stderr)
	}
	if step.ShouldShowOutput() {
		if stdout != "" {
			e.Console.Text(stdout)
		}
		if stderr != "" {
			e.Console.Highlight(stderr)
		}
	}

	combined := stdout + "\n" + stderr
	success := true
	if len(step.PassOnMatch) > 0 {
		matched, err := matchAny(step.PassOnMatch, combined)
		if err != nil {
			return e.commandError(step, res, err)
		}
		success = matched
		if success {
			e.Console.Success("✓ Output matched success pattern")
		} else {
			e.Console.Error("✗ Output didn't match any success pattern")
		}
	}
	if len(step.FailOnMatch) > 0 {
		matched, err := matchAny(step.FailOnMatch, combined)
		if err != nil {
			return e.commandError(step, res, err)
		}
		if matched {
			e.Console.Error("✗ Output matched failure pattern")
			success = false
		}
	}
	if exitOnError && result.ExitCode != 0 && success {
		success = false
		e.Console.Error("Command failed with exit code %d", result.ExitCode)
	}

	e.set(res, schema.SuccessVar(step.ID), success)
	e.Logger.Debug("command finished", "run_id", e.RunID, "step_id", step.ID,
		"exit_code", result.ExitCode, "success", success, "duration", result.Duration)
	if success {
		return nil
	}

	res.fail("command %q failed (exit code %d)", command, result.ExitCode)
	if !exitOnError {
		return nil
	}
	code := result.ExitCode
	if code == 0 {
		code = 1
	}
	return e.abort(ErrCommandExecution, step.ID, code, fmt.Errorf("exit code %d", result.ExitCode))
}

// commandError handles a command that could not be launched or classified.
// The success flag is still written so later conditions can test it.
func (e *Engine) commandError(step *schema.Step, res *StepResult, err error) error {
	e.Console.Error("Error executing command: %v", err)
	e.set(res, schema.SuccessVar(step.ID), false)
	res.fail("%v", err)
	if step.ShouldExitOnError() {
		return e.abort(ErrCommandExecution, step.ID, 1, err)
	}
	return nil
}

// runAction runs a choice or file_check action as a command step with the
// synthetic id <id>_action and default failure policy.
func (e *Engine) runAction(ctx context.Context, parent *schema.Step, command string, res *StepResult) error {
	action := &schema.Step{
		ID:      schema.ActionID(parent.ID),
		Type:    schema.StepCommand,
		Command: command,
	}
	return e.runCommand(ctx, action, res)
}

func (e *Engine) runValidation(ctx context.Context, step *schema.Step, res *StepResult) error {
	ok, err := e.evalCondition(step.Condition)
	if err != nil {
		e.Console.Error("Error evaluating condition: %v", err)
		res.fail("condition: %v", err)
		if step.ShouldExitOnFailure() {
			return e.abort(ErrConditionEvaluation, step.ID, 1, err)
		}
		return nil
	}
	if ok {
		e.Console.Success("Validation passed!")
		return nil
	}

	msg := "Condition not met"
	if step.Error != "" {
		msg = e.expand(step.Error)
	}
	e.Console.Error("Validation failed: %s", msg)
	res.fail("%s", msg)
	if step.ShouldExitOnFailure() {
		return e.abort(ErrValidationFailure, step.ID, 1, fmt.Errorf("%s", msg))
	}
	return nil
}

// runChoice shows a numbered menu and prompts until a number in range is
// entered. Rejected answers leave the context untouched.
func (e *Engine) runChoice(ctx context.Context, step *schema.Step, res *StepResult) error {
	label := step.Prompt
	if label == "" {
		label = "Select an option"
	}
	label = e.expand(label)
	def := e.expand(step.Default)

	for i, c := range step.Choices {
		e.Console.Plain("%d. %s", i+1, c.Name)
	}

	for {
		answer, err := e.Prompter.Prompt(label, def)
		if err != nil {
			return e.abort(ErrInputClosed, step.ID, 1, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			e.Console.Error("Please enter a number")
			continue
		}
		if n < 1 || n > len(step.Choices) {
			e.Console.Error("Invalid choice. Please enter a number between 1 and %d", len(step.Choices))
			continue
		}

		selected := step.Choices[n-1]
		e.Console.Plain("Selected: %s", selected.Name)
		e.set(res, step.ID, selected.Selected())

		if selected.ActionPython != "" {
			e.Console.Warn("Ignoring action_python for %q: scripted actions are not supported", selected.Name)
		}
		if selected.Action != "" {
			return e.runAction(ctx, step, selected.Action, res)
		}
		return nil
	}
}

func (e *Engine) runFileCheck(ctx context.Context, step *schema.Step, res *StepResult) error {
	filename := e.expand(step.Filename)
	if fileExists(filename) {
		e.Console.Success("File '%s' exists", filename)
		if step.ExistsAction != "" {
			return e.runAction(ctx, step, step.ExistsAction, res)
		}
		return nil
	}

	e.Console.Warn("File '%s' does not exist", filename)
	if step.MissingAction != "" {
		if err := e.runAction(ctx, step, step.MissingAction, res); err != nil {
			return err
		}
	}
	if !step.IsRequired() {
		return nil
	}
	e.Console.Error("Required file is missing")
	res.Status = StatusFailed
	res.Error = fmt.Sprintf("required file %q is missing", filename)
	if step.ShouldExitOnMissing() {
		return e.abort(ErrMissingRequiredFile, step.ID, 1, fmt.Errorf("%s", filename))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// compileAnchored compiles an input validation pattern so that it must match
// at the start of the answer, as with a prefix match.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)`)
}

// matchAny reports whether any pattern matches anywhere in text.
func matchAny(patterns []string, text string) (bool, error) {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return false, fmt.Errorf("pattern %q: %w", p, err)
		}
		if re.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}
