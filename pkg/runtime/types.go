// Package runtime interprets a procedure: it walks the steps in order, gates
// them with run_if, dispatches each to its handler, and enforces the
// per-step failure policy.
package runtime

import (
	"fmt"
	"time"
)

// Step outcome
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run outcome
const (
	RunCompleted = "completed"
	RunAborted   = "aborted"
)

// StepResult is the outcome of one step, written to the trace.
type StepResult struct {
	RunID     string            `json:"run_id"`
	StepID    string            `json:"step_id"`
	StepIndex int               `json:"step_index"` // 1-based, as shown to the operator
	Type      string            `json:"type"`
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Vars      map[string]string `json:"vars,omitempty"` // variables written by this step
	Error     string            `json:"error,omitempty"`
}

func (r *StepResult) fail(format string, args ...any) {
	r.Status = StatusFailed
	if r.Error == "" {
		r.Error = fmt.Sprintf(format, args...)
	}
}

func (r *StepResult) skip(reason string) {
	r.Status = StatusSkipped
	r.Error = reason
}

// StepsSummary counts step results by status.
type StepsSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s *StepsSummary) add(status string) {
	s.Total++
	switch status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// RunSummary is the final trace record of a run.
type RunSummary struct {
	Procedure string       `json:"procedure"`
	Mode      string       `json:"mode,omitempty"`
	Status    string       `json:"status"` // completed, aborted
	ExitCode  int          `json:"exit_code"`
	StepID    string       `json:"step_id,omitempty"` // step that aborted the run
	Error     string       `json:"error,omitempty"`
	Steps     StepsSummary `json:"steps"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// TraceEvent is one JSONL trace line: either a step result or the run summary.
type TraceEvent struct {
	Type      string      `json:"type"` // step_result, run_summary
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Result    *StepResult `json:"result,omitempty"`
	Summary   *RunSummary `json:"summary,omitempty"`
}
