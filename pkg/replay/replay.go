package replay

import (
	"context"
	"fmt"

	"github.com/ormasoftchile/procrun/pkg/providers"
)

// Executor implements CommandExecutor by matching command lines against
// recorded scenario entries. Fail-closed: a command with no unused matching
// entry is an error, so nothing ever reaches a real shell.
type Executor struct {
	scenario *Scenario
	used     []bool
}

// NewExecutor creates a replay executor from a loaded scenario.
func NewExecutor(s *Scenario) *Executor {
	return &Executor{
		scenario: s,
		used:     make([]bool, len(s.Commands)),
	}
}

// Execute returns the first unused entry recorded for exactly this command
// line. Entries are consumed, so a repeated command needs one entry per run.
func (r *Executor) Execute(ctx context.Context, command string) (*providers.CommandResult, error) {
	for i, sc := range r.scenario.Commands {
		if r.used[i] || sc.Command != command {
			continue
		}
		r.used[i] = true
		return &providers.CommandResult{
			Stdout:   []byte(sc.Stdout),
			Stderr:   []byte(sc.Stderr),
			ExitCode: sc.ExitCode,
		}, nil
	}
	return nil, fmt.Errorf("replay: no matching scenario entry for command: %s", command)
}

// Unused returns the recorded commands that were never executed.
func (r *Executor) Unused() []string {
	var out []string
	for i, sc := range r.scenario.Commands {
		if !r.used[i] {
			out = append(out, sc.Command)
		}
	}
	return out
}

// Prompter returns a scripted prompter over the scenario's answers.
func (s *Scenario) Prompter() *providers.ScriptedPrompter {
	return providers.NewScriptedPrompter(s.Answers...)
}
