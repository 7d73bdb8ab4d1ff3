// Package providers defines the CommandExecutor and Prompter interfaces the
// runtime engine uses to reach the outside world, and their implementations.
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrInputClosed is returned by a Prompter when no more input can be read
// (end of file, interrupt, or an exhausted script).
var ErrInputClosed = errors.New("input closed")

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts real vs dry-run vs replay command execution.
// Implementations: ShellExecutor, DryRunExecutor, replay.Executor.
//
// A non-nil error means the command could not be launched at all. A command
// that ran and exited non-zero is reported through CommandResult.ExitCode.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) (*CommandResult, error)
}

// Prompter abstracts interactive vs scripted operator input.
// Implementations: ReadlinePrompter, LinePrompter, ScriptedPrompter.
type Prompter interface {
	// Prompt asks for a line of text. An empty answer yields def when def is
	// non-empty; otherwise the question is asked again.
	Prompt(label, def string) (string, error)

	// Confirm asks a yes/no question. An empty answer yields def.
	Confirm(label string, def bool) (bool, error)
}

// FormatLabel renders a prompt label the way every Prompter shows it:
// "label [default]: " or "label: ".
func FormatLabel(label, def string) string {
	if def != "" {
		return label + " [" + def + "]: "
	}
	return label + ": "
}

// FormatConfirm renders a yes/no prompt label.
func FormatConfirm(label string, def bool) string {
	if def {
		return label + " [Y/n]: "
	}
	return label + " [y/N]: "
}

// ParseYesNo interprets a confirmation answer. ok is false when the answer is
// neither empty nor a recognised yes/no spelling.
func ParseYesNo(answer string, def bool) (yes bool, ok bool) {
	switch answer {
	case "":
		return def, true
	case "y", "Y", "yes", "Yes", "YES":
		return true, true
	case "n", "N", "no", "No", "NO":
		return false, true
	}
	return false, false
}
