package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// ShellExecutor runs command lines through the platform shell: "sh -c" on
// Unix-like systems, "cmd.exe /C" on Windows. Substituted values are passed
// through unescaped; procedure authors are trusted.
type ShellExecutor struct {
	// Shell overrides the shell binary (default "sh", or "cmd.exe" on Windows).
	Shell string
	// Dir is the working directory (default: the current directory).
	Dir string
	// Env replaces the environment when non-empty.
	Env []string
}

// Execute runs the command line to completion and captures its output.
// The exit status of a command that ran is never an error.
func (s *ShellExecutor) Execute(ctx context.Context, command string) (*CommandResult, error) {
	start := time.Now()
	name, args := s.argv(command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// argv builds the shell invocation. On Windows the whole command line goes
// after /C as one string so exec does not re-quote individual arguments.
func (s *ShellExecutor) argv(command string) (string, []string) {
	shell := s.Shell
	if runtime.GOOS == "windows" {
		if shell == "" {
			shell = "cmd.exe"
		}
		return shell, []string{"/C", command}
	}
	if shell == "" {
		shell = "sh"
	}
	return shell, []string{"-c", command}
}

// DryRunExecutor records commands without running them. Every command
// "succeeds" with empty output.
type DryRunExecutor struct {
	Commands []string
}

// Execute records the command and returns an empty, successful result.
func (d *DryRunExecutor) Execute(ctx context.Context, command string) (*CommandResult, error) {
	d.Commands = append(d.Commands, command)
	return &CommandResult{}, nil
}
