package runtime

import (
	"errors"
	"fmt"

	"github.com/ormasoftchile/procrun/pkg/providers"
)

// Failure kinds. Every terminating failure is an *AbortError whose Kind is
// one of these, so callers can test with errors.Is.
var (
	ErrConditionEvaluation = errors.New("condition evaluation failed")
	ErrCommandExecution    = errors.New("command execution failed")
	ErrValidationFailure   = errors.New("validation failed")
	ErrInputValidation     = errors.New("input rejected")
	ErrMissingRequiredFile = errors.New("required file is missing")
	ErrUnknownStepType     = errors.New("unknown step type")
	ErrInputClosed         = providers.ErrInputClosed
)

// AbortError terminates a run. Code is the process exit status the run
// should end with.
type AbortError struct {
	Kind   error
	StepID string
	Code   int
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("step %q: %v", e.StepID, e.Kind)
	}
	return fmt.Sprintf("step %q: %v: %v", e.StepID, e.Kind, e.Err)
}

func (e *AbortError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ExitCode maps the result of Engine.Run to a process exit status:
// 0 for nil, the abort code for an *AbortError, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *AbortError
	if errors.As(err, &ae) && ae.Code != 0 {
		return ae.Code
	}
	return 1
}
