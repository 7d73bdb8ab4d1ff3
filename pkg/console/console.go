// Package console renders the operator-facing output of a procedure run:
// banners, step headers, and colour-coded status lines.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status glyphs, so meaning does not rely on colour alone.
const (
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphSkipped = "⏭"
)

// Palette
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
)

// Printer writes styled lines. Styles come from a renderer bound to the output
// writer, so colour is dropped automatically when it is not a terminal.
type Printer struct {
	Out io.Writer
	Err io.Writer

	info, success, warn, fail lipgloss.Style
	heading, banner           lipgloss.Style
	errFail                   lipgloss.Style
}

// New creates a printer over the given writers.
func New(out, errOut io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	er := lipgloss.NewRenderer(errOut)
	return &Printer{
		Out:     out,
		Err:     errOut,
		info:    r.NewStyle().Foreground(colorBlue),
		success: r.NewStyle().Foreground(colorGreen),
		warn:    r.NewStyle().Foreground(colorYellow),
		fail:    r.NewStyle().Foreground(colorRed),
		heading: r.NewStyle().Foreground(colorBlue).Bold(true),
		banner:  r.NewStyle().Foreground(colorGreen).Bold(true),
		errFail: er.NewStyle().Foreground(colorRed),
	}
}

// Stdio creates a printer on the process's stdout and stderr.
func Stdio() *Printer {
	return New(os.Stdout, os.Stderr)
}

// Banner prints a bold success-coloured line (run start and completion).
func (p *Printer) Banner(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.banner, fmt.Sprintf(format, args...)))
}

// Heading prints a bold informational line (step headers).
func (p *Printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.heading, fmt.Sprintf(format, args...)))
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.info, fmt.Sprintf(format, args...)))
}

// Success prints a green line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.success, fmt.Sprintf(format, args...)))
}

// Warn prints a yellow line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.warn, fmt.Sprintf(format, args...)))
}

// Error prints a red line on the output stream.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.Out, render(p.fail, fmt.Sprintf(format, args...)))
}

// Stderr prints a red line on the error stream.
func (p *Printer) Stderr(format string, args ...any) {
	fmt.Fprintln(p.Err, render(p.errFail, fmt.Sprintf(format, args...)))
}

// Plain prints text without styling.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Text prints s verbatim followed by a newline.
func (p *Printer) Text(s string) {
	fmt.Fprintln(p.Out, s)
}

// Highlight prints s verbatim in warning colour (captured stderr).
func (p *Printer) Highlight(s string) {
	fmt.Fprintln(p.Out, render(p.warn, s))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.Out)
}

// render styles each line on its own so multi-line text is not padded to a
// common width.
func render(style lipgloss.Style, s string) string {
	if !strings.Contains(s, "\n") {
		return style.Render(s)
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = style.Render(l)
	}
	return strings.Join(lines, "\n")
}
