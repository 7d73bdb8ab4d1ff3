package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/procrun/pkg/eval"
)

// ValidationError represents a single validation error with location context.
// Errors with Severity "error" are definition errors: the procedure must not run.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[0].command")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any entry is an error rather than a warning.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a procedure file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation of the raw document)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Procedure, []*ValidationError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  fmt.Sprintf("read procedure: %v", err),
			Severity: "error",
		}}
	}
	return ValidateBytes(data)
}

// ValidateBytes runs the validation pipeline over an in-memory document.
func ValidateBytes(data []byte) (*Procedure, []*ValidationError) {
	p, err := LoadBytes(data)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}

	var all []*ValidationError
	all = append(all, validateSemantic(data)...)
	if HasErrors(all) {
		return p, all
	}
	all = append(all, ValidateDomain(p)...)
	if len(all) > 0 {
		return p, all
	}
	return p, nil
}

// validateSemantic checks the raw document against the reflected JSON Schema.
// The raw form is used so that absent keys are seen as absent rather than as
// zero values of the Go struct.
func validateSemantic(data []byte) []*ValidationError {
	semErr := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return semErr("decode document: %v", err)
	}
	docJSON, err := json.Marshal(raw)
	if err != nil {
		return semErr("marshal for schema validation: %v", err)
	}
	var doc any
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return semErr("unmarshal document: %v", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return semErr("%v", err)
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semErr("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

func compiledSchema() (*sjsonschema.Schema, error) {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("procedure.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("procedure.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors and warnings; empty means valid.
func ValidateDomain(p *Procedure) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if strings.TrimSpace(p.Name) == "" {
		add("name", "error", "procedure name must not be empty")
	}

	// Step ID uniqueness
	seen := make(map[string]int)
	for i, s := range p.Steps {
		if s.ID == "" {
			add(fmt.Sprintf("steps[%d].id", i), "error", "step %d is missing its 'id'", i)
			continue
		}
		if prev, ok := seen[s.ID]; ok {
			add(fmt.Sprintf("steps[%d].id", i), "error",
				"duplicate step ID %q (first at steps[%d]); step IDs must be unique", s.ID, prev)
		}
		seen[s.ID] = i
	}

	// Type-specific field validation
	for i := range p.Steps {
		s := &p.Steps[i]
		at := func(field string) string {
			if field == "" {
				return fmt.Sprintf("steps[%d]", i)
			}
			return fmt.Sprintf("steps[%d].%s", i, field)
		}

		switch s.Type {
		case StepInput:
			if s.Validation != nil {
				if s.Validation.Pattern == "" {
					add(at("validation.pattern"), "error", "input step %q has validation without a pattern", s.ID)
				} else if _, err := regexp.Compile(s.Validation.Pattern); err != nil {
					add(at("validation.pattern"), "error", "invalid regex pattern %q: %v", s.Validation.Pattern, err)
				}
			}
		case StepCommand:
			if strings.TrimSpace(s.Command) == "" {
				add(at("command"), "error", "command step %q requires 'command'", s.ID)
			}
			for j, pat := range s.PassOnMatch {
				if _, err := regexp.Compile(pat); err != nil {
					add(at(fmt.Sprintf("pass_on_match[%d]", j)), "error", "invalid regex pattern %q: %v", pat, err)
				}
			}
			for j, pat := range s.FailOnMatch {
				if _, err := regexp.Compile(pat); err != nil {
					add(at(fmt.Sprintf("fail_on_match[%d]", j)), "error", "invalid regex pattern %q: %v", pat, err)
				}
			}
		case StepValidation:
			if strings.TrimSpace(s.Condition) == "" {
				add(at("condition"), "error", "validation step %q requires 'condition'", s.ID)
			} else if err := checkExpression(s.Condition); err != nil {
				add(at("condition"), "warning", "condition does not compile: %v", err)
			}
		case StepChoice:
			if len(s.Choices) == 0 {
				add(at("choices"), "error", "choice step %q requires at least one entry in 'choices'", s.ID)
			}
			for j, c := range s.Choices {
				if c.Name == "" {
					add(at(fmt.Sprintf("choices[%d].name", j)), "error", "choice %d of step %q requires 'name'", j+1, s.ID)
				}
				if c.ActionPython != "" {
					add(at(fmt.Sprintf("choices[%d].action_python", j)), "error",
						"action_python is not supported; express the action as a shell 'action' instead")
				}
			}
		case StepFileCheck:
			if strings.TrimSpace(s.Filename) == "" {
				add(at("filename"), "error", "file_check step %q requires 'filename'", s.ID)
			}
		case "":
			add(at("type"), "error", "step %q is missing its 'type'", s.ID)
		default:
			add(at("type"), "warning", "unknown step type %q; the operator will be asked whether to continue", s.Type)
		}

		if s.RunIf != "" {
			if err := checkExpression(s.RunIf); err != nil {
				add(at("run_if"), "warning", "run_if does not compile: %v", err)
			}
		}
	}

	errs = append(errs, validateReferences(p)...)
	return errs
}

// checkExpression compiles an expression with every placeholder replaced by
// an empty string literal. A failure is only a warning: at run time the step's
// exit_on_failure decides whether the run stops.
func checkExpression(expr string) error {
	blank := eval.LookupFunc(func(string) (any, bool) { return "", true })
	return eval.Default.Check(eval.Substitute(expr, blank, eval.Quoted))
}

// validateReferences warns about placeholders that no earlier step defines.
// Variables are visible only after the step that writes them, so a reference
// to a later step's variable can never resolve.
func validateReferences(p *Procedure) []*ValidationError {
	var errs []*ValidationError
	defined := make(map[string]bool)
	for i := range p.Steps {
		s := &p.Steps[i]
		for _, f := range referenceFields(s) {
			for _, name := range eval.Placeholders(f.text) {
				if defined[name] {
					continue
				}
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].%s", i, f.field),
					Message:  fmt.Sprintf("${%s} is not defined by any earlier step (it must be supplied with --var)", name),
					Severity: "warning",
				})
			}
		}
		for _, name := range DefinedVars(s) {
			defined[name] = true
		}
	}
	return errs
}

type fieldText struct {
	field string
	text  string
}

func referenceFields(s *Step) []fieldText {
	all := []fieldText{
		{"run_if", s.RunIf},
		{"prompt", s.Prompt},
		{"command", s.Command},
		{"condition", s.Condition},
		{"filename", s.Filename},
		{"exists_action", s.ExistsAction},
		{"missing_action", s.MissingAction},
	}
	for j, c := range s.Choices {
		all = append(all, fieldText{fmt.Sprintf("choices[%d].action", j), c.Action})
	}
	var out []fieldText
	for _, f := range all {
		if f.text != "" {
			out = append(out, f)
		}
	}
	return out
}

// ActionID is the synthetic step id given to a choice or file_check action
// when it runs as a command.
func ActionID(stepID string) string {
	return stepID + "_action"
}

// SuccessVar is the context key holding a command step's success flag.
func SuccessVar(stepID string) string {
	return stepID + "_success"
}

// DefinedVars lists the context variables a step may write when it runs.
func DefinedVars(s *Step) []string {
	var names []string
	switch s.Type {
	case StepInput:
		names = append(names, s.ID)
	case StepCommand:
		if s.OutputVar != "" {
			names = append(names, s.OutputVar)
		}
		if s.ErrorVar != "" {
			names = append(names, s.ErrorVar)
		}
		names = append(names, SuccessVar(s.ID))
	case StepChoice:
		names = append(names, s.ID)
		for _, c := range s.Choices {
			if c.Action != "" {
				names = append(names, SuccessVar(ActionID(s.ID)))
				break
			}
		}
	case StepFileCheck:
		if s.ExistsAction != "" || s.MissingAction != "" {
			names = append(names, SuccessVar(ActionID(s.ID)))
		}
	}
	return names
}

// References lists the placeholder names a step reads, in order of first use.
func References(s *Step) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range referenceFields(s) {
		for _, name := range eval.Placeholders(f.text) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
