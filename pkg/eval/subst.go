// Package eval implements ${name} placeholder substitution and condition
// evaluation for procedure steps.
package eval

import (
	"strings"

	"github.com/ormasoftchile/procrun/pkg/vars"
)

// Mode selects how a substituted value is rendered.
type Mode int

const (
	// Raw inserts the bare text of the value (commands, filenames, prompts).
	Raw Mode = iota
	// Quoted inserts the value as a string literal so the result is a valid
	// expression operand (run_if, condition).
	Quoted
)

// Lookup resolves a variable name. *vars.Context satisfies it.
type Lookup interface {
	Lookup(name string) (any, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(name string) (any, bool)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(name string) (any, bool) { return f(name) }

var _ Lookup = (*vars.Context)(nil)

// Substitute replaces every ${name} in tmpl whose name is set in scope.
// Unknown names are left as written. The template is tokenized once, so a
// name that is a prefix of another never collides with it, and substituted
// values are not themselves re-expanded.
//
// Example: Substitute("deploy ${app} to ${env}", {"app": "api"}, Raw) → "deploy api to ${env}"
func Substitute(tmpl string, scope Lookup, mode Mode) string {
	if !strings.Contains(tmpl, "${") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for _, tok := range tokenize(tmpl) {
		if !tok.placeholder {
			b.WriteString(tok.text)
			continue
		}
		val, ok := scope.Lookup(tok.name)
		if !ok {
			b.WriteString(tok.text)
			continue
		}
		text := vars.Format(val)
		if mode == Quoted {
			text = Quote(text)
		}
		b.WriteString(text)
	}
	return b.String()
}

// Placeholders returns the distinct placeholder names in tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	if !strings.Contains(tmpl, "${") {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, tok := range tokenize(tmpl) {
		if tok.placeholder && !seen[tok.name] {
			seen[tok.name] = true
			names = append(names, tok.name)
		}
	}
	return names
}

// Quote renders s as a single-quoted expression string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

type token struct {
	text        string // original text, including ${ } for placeholders
	name        string
	placeholder bool
}

// tokenize splits tmpl into literal runs and ${name} placeholders.
// An unterminated "${" and an empty "${}" are literal text.
func tokenize(tmpl string) []token {
	var toks []token
	i := 0
	for i < len(tmpl) {
		idx := strings.Index(tmpl[i:], "${")
		if idx == -1 {
			toks = append(toks, token{text: tmpl[i:]})
			break
		}
		if idx > 0 {
			toks = append(toks, token{text: tmpl[i : i+idx]})
		}
		start := i + idx + 2
		end := strings.IndexByte(tmpl[start:], '}')
		if end == -1 {
			toks = append(toks, token{text: tmpl[i+idx:]})
			break
		}
		end += start
		name := tmpl[start:end]
		raw := tmpl[i+idx : end+1]
		if name == "" || strings.Contains(name, "${") {
			// Emit "${" literally and rescan from just after it so a nested
			// opener like "${a${b}" still yields the inner placeholder.
			toks = append(toks, token{text: "${"})
			i = start
			continue
		}
		toks = append(toks, token{text: raw, name: name, placeholder: true})
		i = end + 1
	}
	return toks
}
