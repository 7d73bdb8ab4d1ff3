package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ormasoftchile/procrun/pkg/runtime"
)

const releaseDoc = `name: release
description: Cut a release
steps:
  - id: version
    type: input
    prompt: Version
    validation:
      pattern: '\d+\.\d+'
  - id: tag
    type: command
    command: git tag v${version}
    output_var: tag_out
`

const gateDoc = `name: gate
description: Environment gate
steps:
  - id: check
    type: validation
    condition: ${env} == 'prod'
    error: not prod
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with fresh flag values.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	procDir = ""
	runMode, runScenario, runVars, runTrace, runVerbose = "real", "", nil, "", false
	diagramFormat, showRaw = "mermaid", false
	testScenario, testTrace, testQuiet = "", "", false

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "release.yml", releaseDoc)

	out, err := execute(t, "abc\n1.2\n", "run", "release", "--dir", dir, "--mode", "dry-run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Starting procedure: release",
		"Step 1: version",
		"Invalid input. Must match pattern: \\d+\\.\\d+",
		"Executing: git tag v1.2",
		"Procedure completed successfully!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRun_VarSeedsContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gate.yml", gateDoc)

	out, err := execute(t, "", "run", path, "--var", "env=prod")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Validation passed!") {
		t.Errorf("expected pass:\n%s", out)
	}

	out, err = execute(t, "", "run", path, "--var", "env=dev")
	if runtime.ExitCode(err) != 1 {
		t.Fatalf("exit code = %d, want 1 (err %v)", runtime.ExitCode(err), err)
	}
	if !strings.Contains(out, "Validation failed: not prod") {
		t.Errorf("expected failure line:\n%s", out)
	}
}

func TestRun_CommandExitCodePropagates(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	path := writeFile(t, dir, "fail.yml", `name: fail
description: fails
steps:
  - id: boom
    type: command
    command: exit 3
`)
	out, err := execute(t, "", "run", path)
	if got := runtime.ExitCode(err); got != 3 {
		t.Fatalf("exit code = %d, want 3\n%s", got, out)
	}
	var ae *runtime.AbortError
	if !errors.As(err, &ae) || ae.StepID != "boom" {
		t.Errorf("err = %v, want abort at boom", err)
	}
}

func TestRun_MalformedExpressionsFollowStepPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lenient.yml", `name: lenient
description: broken expressions on lenient steps
steps:
  - id: a
    type: command
    command: echo skipped-a
    run_if: "((("
    exit_on_failure: false
  - id: b
    type: validation
    condition: "1 +"
    exit_on_failure: false
  - id: c
    type: command
    command: echo reached-c
`)
	out, err := execute(t, "", "run", path, "--mode", "dry-run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{
		"run_if does not compile",
		"condition does not compile",
		"Error evaluating run_if condition",
		"Error evaluating condition",
		"Executing: echo reached-c",
		"Procedure completed successfully!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped-a") {
		t.Errorf("step a should not run:\n%s", out)
	}

	strict := writeFile(t, dir, "strict.yml", `name: strict
description: broken gate with the default policy
steps:
  - id: a
    type: validation
    condition: "1 +"
  - id: b
    type: command
    command: echo unreachable
`)
	out, err = execute(t, "", "run", strict, "--mode", "dry-run")
	if runtime.ExitCode(err) != 1 {
		t.Fatalf("exit code = %d, want 1\n%s", runtime.ExitCode(err), out)
	}
	if strings.Contains(out, "unreachable") {
		t.Errorf("run should stop at step a:\n%s", out)
	}
}

func TestRun_NotFound(t *testing.T) {
	out, err := execute(t, "", "run", "nope", "--dir", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	var re *reportedError
	if !errors.As(err, &re) {
		t.Errorf("err = %T, want reportedError", err)
	}
	if !strings.Contains(out, "Procedure file not found: nope") || !strings.Contains(out, "Searched in: ") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRun_InvalidVar(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gate.yml", gateDoc)
	_, err := execute(t, "", "run", path, "--var", "novalue")
	if err == nil || !strings.Contains(err.Error(), "expected key=value") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_ReplayRequiresScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gate.yml", gateDoc)
	_, err := execute(t, "", "run", path, "--mode", "replay")
	if err == nil || !strings.Contains(err.Error(), "--scenario is required") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_UnknownMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gate.yml", gateDoc)
	_, err := execute(t, "", "run", path, "--mode", "probe")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("err = %v", err)
	}
}

func TestLs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "release.yml", releaseDoc)
	writeFile(t, dir, "gate.yaml", gateDoc)
	writeFile(t, dir, "broken.yml", "name: [oops")

	out, err := execute(t, "", "ls", "--dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Found 2 procedure(s):",
		" 1. gate     (ID: gate)",
		"    Environment gate",
		" 2. release  (ID: release)",
		"Error reading broken.yml",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestLs_MissingDir(t *testing.T) {
	out, err := execute(t, "", "ls", "--dir", filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Procedure directory not found") || !strings.Contains(out, "PROCEDURE_DIR") {
		t.Errorf("output:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "release.yml", releaseDoc)
	out, err := execute(t, "", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "✓ release is valid (2 steps)") {
		t.Errorf("output:\n%s", out)
	}

	bad := writeFile(t, dir, "bad.yml", "name: bad\ndescription: x\nsteps:\n  - id: a\n    type: command\n")
	out, err = execute(t, "", "validate", bad)
	if err == nil {
		t.Fatalf("expected validation failure:\n%s", out)
	}
	if !strings.Contains(out, "Validation failed: ") {
		t.Errorf("output:\n%s", out)
	}
}

func TestShowRaw(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "release.yml", releaseDoc)
	out, err := execute(t, "", "show", path, "--raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# release") || !strings.Contains(out, "- Command: `git tag v${version}`") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDiagram(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "release.yml", releaseDoc)
	out, err := execute(t, "", "diagram", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "flowchart TD") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := execute(t, "", "diagram", path, "--format", "svg"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "release.yml", releaseDoc)
	pass := writeFile(t, dir, "pass.yaml", `answers: ["2.0"]
commands:
  - command: git tag v2.0
    stdout: ok
expect:
  status: completed
  vars:
    tag_out: ok
`)
	fail := writeFile(t, dir, "fail.yaml", `answers: ["2.0"]
commands:
  - command: git tag v2.0
    stdout: ok
expect:
  vars:
    tag_out: nope
`)

	out, err := execute(t, "", "test", path, "--scenario", pass, "--quiet")
	if err != nil {
		t.Fatalf("test: %v\n%s", err, out)
	}
	if !strings.Contains(out, "PASS") {
		t.Errorf("output:\n%s", out)
	}

	out, err = execute(t, "", "test", path, "--scenario", fail, "--quiet")
	if err == nil {
		t.Fatalf("expected failure:\n%s", out)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, `var tag_out = "ok", want "nope"`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestParseVars(t *testing.T) {
	got, err := parseVars([]string{"a=1", "b=x=y", "c="})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a": "1", "b": "x=y", "c": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseVars = %v, want %v", got, want)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Errorf("parseVars(%q): expected error", bad)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "# comment\nPROCRUN_A=one\nPROCRUN_B=\"two\"\nPROCRUN_SET=new\nbogus\n")
	t.Setenv("PROCRUN_SET", "old")
	t.Setenv("PROCRUN_A", "")
	os.Unsetenv("PROCRUN_A")
	t.Setenv("PROCRUN_B", "")
	os.Unsetenv("PROCRUN_B")

	loadDotEnv(path)

	if got := os.Getenv("PROCRUN_A"); got != "one" {
		t.Errorf("PROCRUN_A = %q", got)
	}
	if got := os.Getenv("PROCRUN_B"); got != "two" {
		t.Errorf("PROCRUN_B = %q", got)
	}
	if got := os.Getenv("PROCRUN_SET"); got != "old" {
		t.Errorf("PROCRUN_SET = %q, existing value should win", got)
	}
}

func TestTestdataProcedures(t *testing.T) {
	dir := filepath.Join("..", "..", "testdata", "procedures")
	out, err := execute(t, "", "ls", "--dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Found 2 procedure(s):") {
		t.Errorf("ls output:\n%s", out)
	}
	for _, name := range []string{"release", "db-restore"} {
		out, err := execute(t, "", "validate", name, "--dir", dir)
		if err != nil {
			t.Errorf("validate %s: %v\n%s", name, err, out)
		}
		if strings.Contains(out, "⚠") {
			t.Errorf("validate %s: unexpected warnings\n%s", name, out)
		}
	}
}

func TestTestdataScenarios(t *testing.T) {
	dir := filepath.Join("..", "..", "testdata")
	release := filepath.Join(dir, "procedures", "release.yml")
	for _, sc := range []string{"release-beta.yaml", "release-dirty.yaml"} {
		t.Run(sc, func(t *testing.T) {
			out, err := execute(t, "", "test", release, "--scenario", filepath.Join(dir, "scenarios", sc), "--quiet")
			if err != nil {
				t.Fatalf("%v\n%s", err, out)
			}
		})
	}
}
