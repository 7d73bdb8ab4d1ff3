// Package replay runs procedures offline against a recorded scenario:
// canned command results, scripted operator answers, and the outcome the
// run is expected to reach.
package replay

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a recorded session for one procedure.
type Scenario struct {
	Vars     map[string]string `yaml:"vars,omitempty"`    // seeded before step 1
	Answers  []string          `yaml:"answers,omitempty"` // prompt answers, in order
	Commands []ScenarioCommand `yaml:"commands,omitempty"`
	Expect   *Expect           `yaml:"expect,omitempty"`
}

// ScenarioCommand is a pre-recorded command with its output.
type ScenarioCommand struct {
	Command  string `yaml:"command"`
	Stdout   string `yaml:"stdout,omitempty"`
	Stderr   string `yaml:"stderr,omitempty"`
	ExitCode int    `yaml:"exit_code,omitempty"`
}

// Expect is the outcome a scenario asserts.
type Expect struct {
	Status   string            `yaml:"status,omitempty"` // completed, aborted
	ExitCode *int              `yaml:"exit_code,omitempty"`
	Vars     map[string]string `yaml:"vars,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Commands) == 0 && len(s.Answers) == 0 && s.Expect == nil {
		return nil, fmt.Errorf("scenario must have at least one command, answer, or expectation")
	}
	if s.Expect != nil {
		switch s.Expect.Status {
		case "", "completed", "aborted":
		default:
			return nil, fmt.Errorf("scenario expect.status %q: must be completed or aborted", s.Expect.Status)
		}
	}
	return &s, nil
}

// Outcome is what a run actually produced.
type Outcome struct {
	Status   string
	ExitCode int
	Vars     map[string]string
}

// Check compares an outcome against the expectation and returns one message
// per mismatch. A nil Expect accepts anything.
func (e *Expect) Check(o Outcome) []string {
	if e == nil {
		return nil
	}
	var failures []string
	if e.Status != "" && e.Status != o.Status {
		failures = append(failures, fmt.Sprintf("status = %s, want %s", o.Status, e.Status))
	}
	if e.ExitCode != nil && *e.ExitCode != o.ExitCode {
		failures = append(failures, fmt.Sprintf("exit code = %d, want %d", o.ExitCode, *e.ExitCode))
	}
	names := make([]string, 0, len(e.Vars))
	for k := range e.Vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		got, ok := o.Vars[k]
		switch {
		case !ok:
			failures = append(failures, fmt.Sprintf("var %s not set, want %q", k, e.Vars[k]))
		case got != e.Vars[k]:
			failures = append(failures, fmt.Sprintf("var %s = %q, want %q", k, got, e.Vars[k]))
		}
	}
	return failures
}
