// Package schema defines the Go struct types for the procedure YAML schema
// and provides strict YAML parsing.
package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Procedure is the top-level document: a named, described, ordered list of steps.
// A loaded Procedure is treated as immutable by the runtime.
type Procedure struct {
	Name        string `yaml:"name"        json:"name"`
	Description string `yaml:"description" json:"description"`
	Steps       []Step `yaml:"steps"       json:"steps"`
}

// StepType enumerates the step kinds understood by the runtime.
type StepType string

const (
	StepInput      StepType = "input"
	StepCommand    StepType = "command"
	StepValidation StepType = "validation"
	StepChoice     StepType = "choice"
	StepFileCheck  StepType = "file_check"
)

// KnownStepTypes lists every step type the runtime has a handler for.
var KnownStepTypes = []StepType{StepInput, StepCommand, StepValidation, StepChoice, StepFileCheck}

// IsKnown reports whether t has a runtime handler.
func (t StepType) IsKnown() bool {
	for _, k := range KnownStepTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Step is the universal step structure. Fields are populated based on Type.
type Step struct {
	// Common fields
	ID            string   `yaml:"id"                        json:"id"`
	Type          StepType `yaml:"type"                      json:"type"`
	Name          string   `yaml:"name,omitempty"            json:"name,omitempty"`
	Description   string   `yaml:"description,omitempty"     json:"description,omitempty"`
	RunIf         string   `yaml:"run_if,omitempty"          json:"run_if,omitempty"`
	ExitOnFailure *bool    `yaml:"exit_on_failure,omitempty" json:"exit_on_failure,omitempty"`

	// Input step
	Prompt     string           `yaml:"prompt,omitempty"     json:"prompt,omitempty"`
	Default    string           `yaml:"default,omitempty"    json:"default,omitempty" jsonschema:"oneof_type=string;number;boolean"`
	Required   *bool            `yaml:"required,omitempty"   json:"required,omitempty"`
	Validation *InputValidation `yaml:"validation,omitempty" json:"validation,omitempty"`

	// Command step
	Command     string   `yaml:"command,omitempty"       json:"command,omitempty"`
	OutputVar   string   `yaml:"output_var,omitempty"    json:"output_var,omitempty"`
	ErrorVar    string   `yaml:"error_var,omitempty"     json:"error_var,omitempty"`
	ShowOutput  *bool    `yaml:"show_output,omitempty"   json:"show_output,omitempty"`
	ExitOnError *bool    `yaml:"exit_on_error,omitempty" json:"exit_on_error,omitempty"`
	PassOnMatch Patterns `yaml:"pass_on_match,omitempty" json:"pass_on_match,omitempty"`
	FailOnMatch Patterns `yaml:"fail_on_match,omitempty" json:"fail_on_match,omitempty"`

	// Validation step
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	Error     string `yaml:"error,omitempty"     json:"error,omitempty"`

	// Choice step (prompt and default are shared with input)
	Choices []Choice `yaml:"choices,omitempty" json:"choices,omitempty"`

	// FileCheck step (required is shared with input)
	Filename      string `yaml:"filename,omitempty"        json:"filename,omitempty"`
	ExistsAction  string `yaml:"exists_action,omitempty"   json:"exists_action,omitempty"`
	MissingAction string `yaml:"missing_action,omitempty"  json:"missing_action,omitempty"`
	ExitOnMissing *bool  `yaml:"exit_on_missing,omitempty" json:"exit_on_missing,omitempty"`
}

// InputValidation constrains the value accepted by an input step.
type InputValidation struct {
	Pattern string `yaml:"pattern"         json:"pattern"`
	Error   string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Choice is one entry of a choice step's menu.
// ActionPython is decoded only so validation can reject it with a clear message.
type Choice struct {
	Name         string `yaml:"name"                    json:"name"`
	Value        any    `yaml:"value,omitempty"         json:"value,omitempty"`
	Action       string `yaml:"action,omitempty"        json:"action,omitempty"`
	ActionPython string `yaml:"action_python,omitempty" json:"action_python,omitempty"`
}

// Selected returns the value stored in the context when this choice is picked.
func (c Choice) Selected() any {
	if c.Value != nil {
		return c.Value
	}
	return c.Name
}

// Patterns is a list of regular expressions. In YAML it may be written as a
// single string or as a sequence of strings.
type Patterns []string

// UnmarshalYAML accepts either a scalar or a sequence.
func (p *Patterns) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = Patterns{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: patterns must be a string or a list of strings", value.Line)
	}
}

// JSONSchema describes Patterns as string-or-array for the reflected schema.
func (Patterns) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

// Title returns the display name of a step: its name, falling back to its id.
func (s *Step) Title() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// ShouldExitOnFailure reports the run_if/validation failure policy (default true).
func (s *Step) ShouldExitOnFailure() bool { return boolOr(s.ExitOnFailure, true) }

// ShouldExitOnError reports the command failure policy (default true).
func (s *Step) ShouldExitOnError() bool { return boolOr(s.ExitOnError, true) }

// ShouldExitOnMissing reports the missing-file policy (default true).
func (s *Step) ShouldExitOnMissing() bool { return boolOr(s.ExitOnMissing, true) }

// ShouldShowOutput reports whether command output is echoed (default true).
func (s *Step) ShouldShowOutput() bool { return boolOr(s.ShowOutput, true) }

// IsRequired reports the required flag. A file_check is optional unless
// marked; for input steps the flag is informational only.
func (s *Step) IsRequired() bool { return boolOr(s.Required, false) }

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Bool returns a pointer to b, for building steps in code.
func Bool(b bool) *bool { return &b }

// LoadFile reads and strictly parses a procedure YAML file.
func LoadFile(path string) (*Procedure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open procedure: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load strictly parses a procedure from a reader. Unknown fields are rejected.
func Load(r io.Reader) (*Procedure, error) {
	var p Procedure
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("structural decode: empty document")
		}
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &p, nil
}

// LoadBytes is Load over an in-memory document.
func LoadBytes(data []byte) (*Procedure, error) {
	return Load(bytes.NewReader(data))
}

// Header is the subset of a procedure read when listing. Decoding is lenient
// so a listing can show documents that would fail full validation.
type Header struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadHeader reads only the name and description of a procedure file.
func LoadHeader(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read procedure: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse procedure: %w", err)
	}
	return &h, nil
}
