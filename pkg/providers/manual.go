package providers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ReadlinePrompter prompts on the controlling terminal with line editing and
// in-session history.
type ReadlinePrompter struct {
	rl *readline.Instance
}

// NewReadlinePrompter opens a readline instance on stdin/stdout.
func NewReadlinePrompter() (*ReadlinePrompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &ReadlinePrompter{rl: rl}, nil
}

// Close releases the terminal.
func (p *ReadlinePrompter) Close() error {
	return p.rl.Close()
}

func (p *ReadlinePrompter) Prompt(label, def string) (string, error) {
	p.rl.SetPrompt(FormatLabel(label, def))
	for {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		if def != "" {
			return def, nil
		}
	}
}

func (p *ReadlinePrompter) Confirm(label string, def bool) (bool, error) {
	p.rl.SetPrompt(FormatConfirm(label, def))
	for {
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		if yes, ok := ParseYesNo(strings.TrimSpace(line), def); ok {
			return yes, nil
		}
		fmt.Fprintln(p.rl.Stderr(), "Error: invalid input")
	}
}

func (p *ReadlinePrompter) readLine() (string, error) {
	line, err := p.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrInputClosed
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return line, nil
}

// LinePrompter prompts on plain reader/writer streams. It is used when stdin
// is not a terminal and in tests.
type LinePrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewLinePrompter creates a prompter reading answers from in and writing
// labels to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{reader: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) Prompt(label, def string) (string, error) {
	for {
		fmt.Fprint(p.out, FormatLabel(label, def))
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		if def != "" {
			return def, nil
		}
	}
}

func (p *LinePrompter) Confirm(label string, def bool) (bool, error) {
	for {
		fmt.Fprint(p.out, FormatConfirm(label, def))
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		if yes, ok := ParseYesNo(strings.TrimSpace(line), def); ok {
			return yes, nil
		}
		fmt.Fprintln(p.out, "Error: invalid input")
	}
}

func (p *LinePrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ScriptedPrompter answers prompts from a fixed list, in order. Used in
// replay mode and tests. Running out of answers returns ErrInputClosed.
type ScriptedPrompter struct {
	Answers []string
	// Out, when set, receives a transcript of each prompt and its answer.
	Out io.Writer

	pos int
}

// NewScriptedPrompter creates a prompter over the given answers.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{Answers: answers}
}

func (p *ScriptedPrompter) Prompt(label, def string) (string, error) {
	for {
		a, err := p.next(FormatLabel(label, def))
		if err != nil {
			return "", err
		}
		if a != "" {
			return a, nil
		}
		if def != "" {
			return def, nil
		}
	}
}

func (p *ScriptedPrompter) Confirm(label string, def bool) (bool, error) {
	for {
		a, err := p.next(FormatConfirm(label, def))
		if err != nil {
			return false, err
		}
		if yes, ok := ParseYesNo(strings.TrimSpace(a), def); ok {
			return yes, nil
		}
	}
}

// Remaining returns the number of unused answers.
func (p *ScriptedPrompter) Remaining() int {
	return len(p.Answers) - p.pos
}

func (p *ScriptedPrompter) next(shown string) (string, error) {
	if p.pos >= len(p.Answers) {
		return "", fmt.Errorf("%w: no scripted answer for %q", ErrInputClosed, strings.TrimSpace(shown))
	}
	a := p.Answers[p.pos]
	p.pos++
	if p.Out != nil {
		fmt.Fprintln(p.Out, shown+a)
	}
	return a, nil
}
