package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterPlainOnNonTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Banner("Starting procedure: %s", "release")
	p.Heading("Step %d: %s", 1, "tag")
	p.Success("Validation passed!")
	p.Warn("File '%s' does not exist", "x.txt")
	p.Error("Validation failed: %s", "bad")
	p.Stderr("Unknown step type: %s", "webhook")

	want := "Starting procedure: release\n" +
		"Step 1: tag\n" +
		"Validation passed!\n" +
		"File 'x.txt' does not exist\n" +
		"Validation failed: bad\n"
	if out.String() != want {
		t.Errorf("stdout =\n%q\nwant\n%q", out.String(), want)
	}
	if errOut.String() != "Unknown step type: webhook\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Error("escape sequences written to a non-terminal")
	}
}

func TestPrinterMultilineNotPadded(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &out)
	p.Highlight("short\na much longer line")
	if out.String() != "short\na much longer line\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestPrinterPlainKeepsPercent(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &out)
	p.Text("100% done")
	p.Blank()
	if out.String() != "100% done\n\n" {
		t.Errorf("got %q", out.String())
	}
}
