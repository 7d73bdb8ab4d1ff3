package replay

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/schema"
)

// TestScenarioParsing verifies valid scenario files load correctly.
func TestScenarioParsing(t *testing.T) {
	data := []byte(`
vars:
  region: eu-west-1
answers: ["1.2.3", "1"]
commands:
  - command: git tag v1.2.3
    stdout: ""
  - command: ./smoke.sh
    stdout: "OK\n"
    exit_code: 0
expect:
  status: completed
  exit_code: 0
  vars:
    version: 1.2.3
`)
	s, err := ParseScenario(data)
	if err != nil {
		t.Fatalf("ParseScenario() error: %v", err)
	}
	if len(s.Commands) != 2 || len(s.Answers) != 2 {
		t.Errorf("commands=%d answers=%d", len(s.Commands), len(s.Answers))
	}
	if s.Vars["region"] != "eu-west-1" {
		t.Errorf("vars = %v", s.Vars)
	}
	if s.Expect == nil || s.Expect.ExitCode == nil || *s.Expect.ExitCode != 0 || s.Expect.Vars["version"] != "1.2.3" {
		t.Errorf("expect = %+v", s.Expect)
	}
}

// TestScenarioParsingEmpty verifies empty scenario is rejected.
func TestScenarioParsingEmpty(t *testing.T) {
	if _, err := ParseScenario([]byte(`{}`)); err == nil {
		t.Fatal("expected error for empty scenario")
	}
}

// TestScenarioParsingInvalid verifies invalid YAML and statuses are rejected.
func TestScenarioParsingInvalid(t *testing.T) {
	for _, doc := range []string{`{{{invalid`, "expect:\n  status: done\n"} {
		if _, err := ParseScenario([]byte(doc)); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}

// TestExecutorCommandMatching verifies exact matching and consumption.
func TestExecutorCommandMatching(t *testing.T) {
	s := &Scenario{
		Commands: []ScenarioCommand{
			{Command: "make test", Stdout: "PASS\n"},
			{Command: "make test", Stdout: "FAIL\n", ExitCode: 2},
			{Command: "make lint"},
		},
	}
	exec := NewExecutor(s)
	ctx := context.Background()

	first, err := exec.Execute(ctx, "make test")
	if err != nil {
		t.Fatal(err)
	}
	second, err := exec.Execute(ctx, "make test")
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Stdout) != "PASS\n" || second.ExitCode != 2 {
		t.Errorf("first=%q second=%d", first.Stdout, second.ExitCode)
	}
	if _, err := exec.Execute(ctx, "make test"); err == nil {
		t.Error("expected fail-closed error once entries are used up")
	}
	if _, err := exec.Execute(ctx, "make  lint"); err == nil {
		t.Error("expected no match for a different command line")
	}
	if u := exec.Unused(); len(u) != 1 || u[0] != "make lint" {
		t.Errorf("unused = %v", u)
	}
}

const releaseProcedure = `
name: release
description: Tag and verify a release.
steps:
  - id: version
    type: input
    validation:
      pattern: "[0-9]+\\.[0-9]+\\.[0-9]+"
  - id: tag
    type: command
    command: git tag v${version} --message "${region}"
  - id: smoke
    type: command
    command: ./smoke.sh
    pass_on_match: OK
    output_var: smoke_out
`

func play(t *testing.T, scenario string) (*Report, string) {
	t.Helper()
	p, err := schema.LoadBytes([]byte(releaseProcedure))
	if err != nil {
		t.Fatal(err)
	}
	s, err := ParseScenario([]byte(scenario))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := Play(context.Background(), p, s, Options{Console: console.New(&out, &out)})
	return r, out.String()
}

func TestPlayCompleted(t *testing.T) {
	r, out := play(t, `
vars: {region: eu}
answers: ["x", "1.2.3"]
commands:
  - command: git tag v1.2.3 --message "eu"
  - command: ./smoke.sh
    stdout: "OK\n"
expect:
  status: completed
  exit_code: 0
  vars:
    version: 1.2.3
    smoke_out: OK
    smoke_success: "True"
`)
	if !r.Passed() {
		t.Fatalf("failures: %v\n%s", r.Failures, out)
	}
	if !strings.Contains(out, "Procedure completed successfully!") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, "Enter version: x") {
		t.Errorf("transcript missing from output:\n%s", out)
	}
}

func TestPlayExpectedAbort(t *testing.T) {
	r, _ := play(t, `
vars: {region: eu}
answers: ["2.0.0"]
commands:
  - command: git tag v2.0.0 --message "eu"
  - command: ./smoke.sh
    stdout: "FAILED"
    exit_code: 4
expect:
  status: aborted
  exit_code: 4
`)
	if !r.Passed() {
		t.Fatalf("failures: %v", r.Failures)
	}
	if r.RunErr == nil {
		t.Error("expected the run itself to abort")
	}
}

func TestPlayReportsMismatches(t *testing.T) {
	r, _ := play(t, `
vars: {region: eu}
answers: ["1.0.0", "spare"]
commands:
  - command: git tag v1.0.0 --message "eu"
  - command: ./smoke.sh
    stdout: "OK"
  - command: ./never-run.sh
expect:
  status: completed
  vars:
    version: 9.9.9
    missing: x
`)
	if r.Passed() {
		t.Fatal("expected failures")
	}
	joined := strings.Join(r.Failures, "\n")
	for _, want := range []string{
		`var missing not set`,
		`var version = "1.0.0", want "9.9.9"`,
		`recorded command never ran: ./never-run.sh`,
		`1 recorded answer(s) never used`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("failures missing %q:\n%s", want, joined)
		}
	}
}

func TestPlayUnrecordedCommandAborts(t *testing.T) {
	r, _ := play(t, `
vars: {region: eu}
answers: ["1.0.0"]
`)
	if r.Passed() || r.Outcome.Status != "aborted" || r.Outcome.ExitCode != 1 {
		t.Errorf("report = %+v", r)
	}
}
