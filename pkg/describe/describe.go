// Package describe produces a human-readable Markdown summary of a procedure
// and renders it for the terminal.
package describe

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ormasoftchile/procrun/pkg/schema"
)

// Markdown summarises a procedure: an overview table, one section per step,
// and the variables it reads from outside.
func Markdown(p *schema.Procedure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	if d := strings.TrimSpace(p.Description); d != "" {
		b.WriteString(d + "\n\n")
	}

	if len(p.Steps) == 0 {
		b.WriteString("_This procedure has no steps._\n")
		return b.String()
	}

	b.WriteString("| # | Step | Type | Runs if | Defines |\n")
	b.WriteString("|---|------|------|---------|---------|\n")
	for i := range p.Steps {
		s := &p.Steps[i]
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, cell(s.Title()), s.Type, code(s.RunIf), codeList(schema.DefinedVars(s)))
	}

	b.WriteString("\n## Steps\n")
	for i := range p.Steps {
		writeStep(&b, i+1, &p.Steps[i])
	}

	if ext := External(p); len(ext) > 0 {
		b.WriteString("\n## External variables\n\n")
		b.WriteString("Referenced before any step defines them; supply with `--var name=value`.\n\n")
		for _, name := range ext {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
	}
	return b.String()
}

func writeStep(b *strings.Builder, num int, s *schema.Step) {
	fmt.Fprintf(b, "\n### %d. %s\n\n", num, s.Title())
	fmt.Fprintf(b, "`%s` step, id `%s`\n\n", s.Type, s.ID)
	if d := strings.TrimSpace(s.Description); d != "" {
		b.WriteString(d + "\n\n")
	}
	if s.RunIf != "" {
		fmt.Fprintf(b, "- Runs only if `%s`\n", s.RunIf)
	}

	switch s.Type {
	case schema.StepInput:
		if s.Prompt != "" {
			fmt.Fprintf(b, "- Prompt: %s\n", s.Prompt)
		}
		if s.Default != "" {
			fmt.Fprintf(b, "- Default: `%s`\n", s.Default)
		}
		if v := s.Validation; v != nil && v.Pattern != "" {
			fmt.Fprintf(b, "- Must match `%s`", v.Pattern)
			if v.Error != "" {
				fmt.Fprintf(b, " (%s)", v.Error)
			}
			b.WriteString("\n")
		}
	case schema.StepCommand:
		fmt.Fprintf(b, "- Command: `%s`\n", s.Command)
		if s.OutputVar != "" {
			fmt.Fprintf(b, "- Stdout saved to `%s`\n", s.OutputVar)
		}
		if s.ErrorVar != "" {
			fmt.Fprintf(b, "- Stderr saved to `%s`\n", s.ErrorVar)
		}
		if len(s.PassOnMatch) > 0 {
			fmt.Fprintf(b, "- Passes when output matches %s\n", codeList(s.PassOnMatch))
		}
		if len(s.FailOnMatch) > 0 {
			fmt.Fprintf(b, "- Fails when output matches %s\n", codeList(s.FailOnMatch))
		}
		if !s.ShouldShowOutput() {
			b.WriteString("- Output is captured but not shown\n")
		}
		fmt.Fprintf(b, "- On failure: %s\n", policy(s.ShouldExitOnError()))
	case schema.StepValidation:
		fmt.Fprintf(b, "- Condition: `%s`\n", s.Condition)
		if s.Error != "" {
			fmt.Fprintf(b, "- Message: %s\n", s.Error)
		}
		fmt.Fprintf(b, "- On failure: %s\n", policy(s.ShouldExitOnFailure()))
	case schema.StepChoice:
		if s.Prompt != "" {
			fmt.Fprintf(b, "- Prompt: %s\n", s.Prompt)
		}
		for i, c := range s.Choices {
			fmt.Fprintf(b, "- %d. %s", i+1, c.Name)
			if c.Value != nil {
				fmt.Fprintf(b, " = `%v`", c.Value)
			}
			if c.Action != "" {
				fmt.Fprintf(b, ", runs `%s`", c.Action)
			}
			b.WriteString("\n")
		}
	case schema.StepFileCheck:
		fmt.Fprintf(b, "- File: `%s`\n", s.Filename)
		if s.ExistsAction != "" {
			fmt.Fprintf(b, "- If present: `%s`\n", s.ExistsAction)
		}
		if s.MissingAction != "" {
			fmt.Fprintf(b, "- If missing: `%s`\n", s.MissingAction)
		}
		if s.IsRequired() {
			fmt.Fprintf(b, "- Required; when missing: %s\n", policy(s.ShouldExitOnMissing()))
		}
	default:
		b.WriteString("- Unknown step type; the operator is asked whether to continue\n")
	}
}

// External lists the variables a procedure reads before any step defines
// them, in order of first use.
func External(p *schema.Procedure) []string {
	defined := make(map[string]bool)
	seen := make(map[string]bool)
	var names []string
	for i := range p.Steps {
		s := &p.Steps[i]
		for _, name := range schema.References(s) {
			if !defined[name] && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for _, name := range schema.DefinedVars(s) {
			defined[name] = true
		}
	}
	return names
}

func policy(exit bool) string {
	if exit {
		return "abort the run"
	}
	return "continue"
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + cell(s) + "`"
}

func codeList(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = code(it)
	}
	return strings.Join(parts, ", ")
}

// cell escapes text for use inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Render converts markdown to styled terminal output wrapped at width
// (0 disables wrapping). It falls back to the raw input when rendering fails.
func Render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
