package main

import (
	"errors"
	"fmt"

	"github.com/chzyer/readline"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/procrun/pkg/catalog"
	"github.com/ormasoftchile/procrun/pkg/console"
	"github.com/ormasoftchile/procrun/pkg/describe"
	"github.com/ormasoftchile/procrun/pkg/diagram"
)

// --- ls ---

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List available procedures",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	dir := catalog.Dir(procDir)

	entries, problems, err := catalog.List(dir)
	if errors.Is(err, catalog.ErrNoDir) {
		out.Plain("Procedure directory not found: %s", dir)
		out.Plain("Set the %s environment variable to specify the location.", catalog.EnvDir)
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range problems {
		out.Stderr("Error reading %s", p.Error())
	}
	if len(entries) == 0 {
		out.Plain("No procedure definitions found.")
		return nil
	}

	width := 0
	for _, e := range entries {
		if w := runewidth.StringWidth(e.Name); w > width {
			width = w
		}
	}
	out.Plain("Found %d procedure(s):", len(entries))
	out.Blank()
	for i, e := range entries {
		out.Plain("%2d. %s  (ID: %s)", i+1, runewidth.FillRight(e.Name, width), e.ID)
		out.Plain("    %s", e.Description)
	}
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [procedure]",
	Short: "Validate a procedure against the schema and domain rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
		p, err := loadProcedure(out, args[0])
		if err != nil {
			return err
		}
		out.Success("✓ %s is valid (%d steps)", p.Name, len(p.Steps))
		return nil
	},
}

// --- show ---

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show [procedure]",
	Short: "Describe a procedure's steps, variables and failure policies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
		p, err := loadProcedure(out, args[0])
		if err != nil {
			return err
		}
		md := describe.Markdown(p)
		if showRaw {
			out.Text(md)
			return nil
		}
		width := readline.GetScreenWidth()
		if width <= 0 || width > 120 {
			width = 100
		}
		out.Text(describe.Render(md, width))
		return nil
	},
}

// --- diagram ---

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [procedure]",
	Short: "Render a procedure's flow as a Mermaid or ASCII diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
		p, err := loadProcedure(out, args[0])
		if err != nil {
			return err
		}
		d, err := diagram.Generate(p, diagram.Format(diagramFormat))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d)
		return nil
	},
}
