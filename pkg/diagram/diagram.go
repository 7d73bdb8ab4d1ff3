// Package diagram renders a procedure's flow as a Mermaid flowchart or an
// ASCII box diagram.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/procrun/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a parsed procedure.
func Generate(p *schema.Procedure, format Format) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nil procedure")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(p), nil
	case FormatASCII:
		return generateASCII(p), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

const (
	startNode = "START"
	endNode   = "DONE"
	abortNode = "ABORT"
)

func generateMermaid(p *schema.Procedure) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    " + startNode + "([Start])\n")

	steps := collectSteps(p)
	aborts := false
	prev := startNode
	for i, s := range steps {
		id := safeID(s.id)
		next := endNode
		if i < len(steps)-1 {
			next = safeID(steps[i+1].id)
		}

		b.WriteString("    " + nodeDefinition(s) + "\n")
		if s.runIf != "" {
			fmt.Fprintf(&b, "    %s -->|%q| %s\n", prev, "if "+escMermaid(truncate(s.runIf, 30)), id)
			fmt.Fprintf(&b, "    %s -.->|\"skip\"| %s\n", prev, next)
		} else {
			fmt.Fprintf(&b, "    %s --> %s\n", prev, id)
		}

		// Actions hang off the step and rejoin the main flow.
		for j, a := range s.actions {
			actionID := fmt.Sprintf("%s_action_%d", id, j+1)
			fmt.Fprintf(&b, "    %s[\"⚡ %s\"]\n", actionID, escMermaid(truncate(a.command, 40)))
			fmt.Fprintf(&b, "    %s -->|%q| %s\n", id, escMermaid(a.label), actionID)
			fmt.Fprintf(&b, "    %s --> %s\n", actionID, next)
		}

		if s.canAbort {
			aborts = true
			fmt.Fprintf(&b, "    %s -.->|%q| %s\n", id, s.abortLabel, abortNode)
		}
		prev = id
	}
	fmt.Fprintf(&b, "    %s --> %s\n", prev, endNode)
	b.WriteString("    " + endNode + "([Completed])\n")
	if aborts {
		b.WriteString("    " + abortNode + "([Abort])\n")
		b.WriteString("    style " + abortNode + " fill:#e60,stroke:#c40,color:#fff\n")
	}
	b.WriteString("    style " + endNode + " fill:#0d6,stroke:#0a5,color:#fff\n")

	for _, s := range steps {
		if s.stepType == schema.StepCommand {
			fmt.Fprintf(&b, "    style %s fill:#1a3a4a,stroke:#0af\n", safeID(s.id))
		}
	}
	return b.String()
}

// --- ASCII ---

func generateASCII(p *schema.Procedure) string {
	var b strings.Builder

	name := p.Name
	if name == "" {
		name = "Procedure"
	}

	steps := collectSteps(p)
	if len(steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(steps, name)
	connCol := indent + 1 + boxWidth/2 // +1 for the left border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, s := range steps {
		writeASCIIStep(&b, s, indent, boxWidth)
		if i < len(steps)-1 {
			b.WriteString(connPad + "│\n")
		}
	}
	b.WriteString(connPad + "▼\n")
	b.WriteString(strings.Repeat(" ", connCol-4) + "✓ done\n")
	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed across all
// steps and the header name.
func computeUniformBoxWidth(steps []diagramStep, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, s := range steps {
		for _, l := range boxLines(s) {
			if lw := runewidth.StringWidth(l); lw > w {
				w = lw
			}
		}
	}
	return w
}

// boxLines returns the interior lines of one step box.
func boxLines(s diagramStep) []string {
	lines := []string{fmt.Sprintf(" %s %s ", stepIcon(s.stepType), s.title)}
	if s.runIf != "" {
		lines = append(lines, " if "+truncate(s.runIf, 40)+" ")
	}
	for _, a := range s.actions {
		lines = append(lines, "  "+a.label+": "+truncate(a.command, 36)+" ")
	}
	if len(s.defines) > 0 {
		lines = append(lines, " → "+strings.Join(s.defines, ", ")+" ")
	}
	return lines
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

func writeASCIIStep(b *strings.Builder, s diagramStep, indent, boxWidth int) {
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	for _, l := range boxLines(s) {
		w := runewidth.StringWidth(l)
		b.WriteString(pad + "│" + l + strings.Repeat(" ", boxWidth-w) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func stepIcon(t schema.StepType) string {
	switch t {
	case schema.StepInput:
		return "⌨"
	case schema.StepCommand:
		return "⚡"
	case schema.StepValidation:
		return "✔"
	case schema.StepChoice:
		return "☰"
	case schema.StepFileCheck:
		return "📄"
	default:
		return "○"
	}
}

// --- step collection ---

type diagramStep struct {
	id         string
	title      string
	stepType   schema.StepType
	runIf      string
	defines    []string
	actions    []diagramAction
	canAbort   bool
	abortLabel string
}

type diagramAction struct {
	label   string
	command string
}

func collectSteps(p *schema.Procedure) []diagramStep {
	var out []diagramStep
	for i := range p.Steps {
		s := &p.Steps[i]
		ds := diagramStep{
			id:       s.ID,
			title:    s.Title(),
			stepType: s.Type,
			runIf:    s.RunIf,
		}
		switch s.Type {
		case schema.StepInput, schema.StepChoice:
			ds.defines = []string{s.ID}
		case schema.StepCommand:
			if s.OutputVar != "" {
				ds.defines = append(ds.defines, s.OutputVar)
			}
			if s.ErrorVar != "" {
				ds.defines = append(ds.defines, s.ErrorVar)
			}
		}
		switch s.Type {
		case schema.StepCommand:
			ds.canAbort, ds.abortLabel = s.ShouldExitOnError(), "fails"
		case schema.StepValidation:
			ds.canAbort, ds.abortLabel = s.ShouldExitOnFailure(), "false"
		case schema.StepFileCheck:
			ds.canAbort, ds.abortLabel = s.IsRequired() && s.ShouldExitOnMissing(), "missing"
		}
		for _, c := range s.Choices {
			if c.Action != "" {
				ds.actions = append(ds.actions, diagramAction{label: c.Name, command: c.Action})
			}
		}
		if s.ExistsAction != "" {
			ds.actions = append(ds.actions, diagramAction{label: "exists", command: s.ExistsAction})
		}
		if s.MissingAction != "" {
			ds.actions = append(ds.actions, diagramAction{label: "missing", command: s.MissingAction})
		}
		out = append(out, ds)
	}
	return out
}

// --- string helpers ---

func nodeDefinition(s diagramStep) string {
	id := safeID(s.id)
	label := stepIcon(s.stepType) + " " + escMermaid(s.title)
	if len(s.defines) > 0 {
		label += "<br/>→ " + strings.Join(s.defines, ", ")
	}

	switch s.stepType {
	case schema.StepInput:
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	case schema.StepValidation:
		return fmt.Sprintf(`%s{"%s"}`, id, label)
	case schema.StepChoice:
		return fmt.Sprintf(`%s{{"%s"}}`, id, label)
	case schema.StepFileCheck:
		return fmt.Sprintf(`%s[("%s")]`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return "s_" + r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
