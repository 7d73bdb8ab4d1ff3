// Package mcp exposes read-only procrun tools over the Model Context Protocol.
// Procedures are interactive, so nothing here executes one.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with procrun tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"procrun",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("procrun/list",
			mcp.WithDescription("List the procedures available in a procedure directory"),
			mcp.WithString("dir", mcp.Description("Procedure directory (defaults to $PROCEDURE_DIR or ./procedures)")),
		),
		HandleList,
	)

	s.AddTool(
		mcp.NewTool("procrun/validate",
			mcp.WithDescription("Validate a procedure YAML document"),
			mcp.WithString("procedure", mcp.Required(), mcp.Description("Path or name of the procedure")),
			mcp.WithString("dir", mcp.Description("Procedure directory used to resolve names")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("procrun/describe",
			mcp.WithDescription("Summarise a procedure's steps, variables and failure policies as Markdown"),
			mcp.WithString("procedure", mcp.Required(), mcp.Description("Path or name of the procedure")),
			mcp.WithString("dir", mcp.Description("Procedure directory used to resolve names")),
		),
		HandleDescribe,
	)

	s.AddTool(
		mcp.NewTool("procrun/diagram",
			mcp.WithDescription("Render a procedure's flow as a Mermaid or ASCII diagram"),
			mcp.WithString("procedure", mcp.Required(), mcp.Description("Path or name of the procedure")),
			mcp.WithString("dir", mcp.Description("Procedure directory used to resolve names")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		HandleDiagram,
	)

	s.AddTool(
		mcp.NewTool("procrun/schema",
			mcp.WithDescription("Export the procedure JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
