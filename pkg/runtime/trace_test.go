package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestTraceWriteAndRead verifies writing and reading JSONL trace events.
func TestTraceWriteAndRead(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")

	w, err := NewTraceWriter(tracePath)
	if err != nil {
		t.Fatalf("create trace writer: %v", err)
	}
	results := []*StepResult{
		{RunID: "20260211T153042-a7f3c2d1", StepID: "version", StepIndex: 1, Type: "input", Status: StatusPassed, Vars: map[string]string{"version": "1.2.3"}},
		{RunID: "20260211T153042-a7f3c2d1", StepID: "tag", StepIndex: 2, Type: "command", Status: StatusFailed, Error: "exit code 1"},
	}
	for _, r := range results {
		if err := w.WriteStep(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	summary := &RunSummary{Procedure: "release", Status: RunAborted, ExitCode: 1, StepID: "tag"}
	if err := w.WriteSummary("20260211T153042-a7f3c2d1", summary); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	events, err := ReadTrace(tracePath)
	if err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if events[0].Type != "step_result" || events[0].Result.Vars["version"] != "1.2.3" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Result.Status != StatusFailed {
		t.Errorf("event 1 status = %q", events[1].Result.Status)
	}
	last := events[2]
	if last.Type != "run_summary" || last.Summary == nil || last.Summary.StepID != "tag" {
		t.Errorf("event 2 = %+v", last)
	}
}

// TestEngineWritesTrace runs a procedure with a trace attached and checks
// one step_result per step plus a final run_summary.
func TestEngineWritesTrace(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "run.jsonl")
	h := newHarness(t, `
name: traced
description: d
steps:
  - id: env
    type: input
  - id: skipped
    type: command
    command: echo never
    run_if: "${env} == 'prod'"
  - id: build
    type: command
    command: make
`, "dev")
	h.exec.results["make"] = result(2, "", "compile error")
	tw, err := NewTraceWriter(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	h.engine.Trace = tw
	h.engine.Mode = "replay"

	runErr := h.run()
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	wantAbort(t, runErr, ErrCommandExecution, 2)

	events, err := ReadTrace(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	var statuses []string
	for _, ev := range events[:3] {
		if ev.Type != "step_result" || ev.RunID != h.engine.RunID {
			t.Errorf("unexpected event %+v", ev)
		}
		statuses = append(statuses, ev.Result.Status)
	}
	if got := strings.Join(statuses, ","); got != "passed,skipped,failed" {
		t.Errorf("statuses = %s", got)
	}
	if events[0].Result.Vars["env"] != "dev" {
		t.Errorf("vars = %v", events[0].Result.Vars)
	}
	s := events[3].Summary
	if s == nil {
		t.Fatal("missing run summary")
	}
	if s.Status != RunAborted || s.ExitCode != 2 || s.StepID != "build" || s.Mode != "replay" {
		t.Errorf("summary = %+v", s)
	}
	if s.Steps.Total != 3 || s.Steps.Passed != 1 || s.Steps.Skipped != 1 || s.Steps.Failed != 1 {
		t.Errorf("steps = %+v", s.Steps)
	}
}
