package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/procrun/pkg/catalog"
	"github.com/ormasoftchile/procrun/pkg/describe"
	"github.com/ormasoftchile/procrun/pkg/diagram"
	"github.com/ormasoftchile/procrun/pkg/schema"
)

// HandleList implements the procrun/list MCP tool.
func HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	dir, _ := args["dir"].(string)
	dir = catalog.Dir(dir)

	entries, problems, err := catalog.List(dir)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if entries == nil {
		entries = []catalog.Entry{}
	}
	response := map[string]any{
		"dir":        dir,
		"procedures": entries,
	}
	if len(problems) > 0 {
		var msgs []string
		for _, p := range problems {
			msgs = append(msgs, p.Error())
		}
		response["problems"] = msgs
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// HandleValidate implements the procrun/validate MCP tool. Warnings are
// reported alongside a successful result.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, res := resolveArg(req)
	if res != nil {
		return res, nil
	}

	p, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", p.Name, len(p.Steps))
	for _, e := range errs {
		msg += "\n⚠ " + e.Error()
	}
	return textResult(msg), nil
}

// HandleDescribe implements the procrun/describe MCP tool.
func HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, res := loadArg(req)
	if res != nil {
		return res, nil
	}
	return textResult(describe.Markdown(p)), nil
}

// HandleDiagram implements the procrun/diagram MCP tool.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, res := loadArg(req)
	if res != nil {
		return res, nil
	}
	format, _ := req.GetArguments()["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}
	out, err := diagram.Generate(p, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSchema implements the procrun/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// resolveArg turns the procedure argument into a document path. A non-nil
// result is an error to return to the client as is.
func resolveArg(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args := req.GetArguments()
	name, _ := args["procedure"].(string)
	if name == "" {
		return "", errorResult("procedure argument is required")
	}
	dir, _ := args["dir"].(string)
	path, err := catalog.Resolve(name, catalog.Dir(dir))
	if err != nil {
		return "", errorResult(err.Error())
	}
	return path, nil
}

// loadArg resolves and validates the procedure argument.
func loadArg(req mcp.CallToolRequest) (*schema.Procedure, *mcp.CallToolResult) {
	path, res := resolveArg(req)
	if res != nil {
		return nil, res
	}
	p, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return nil, errorResult(formatErrors(errs))
	}
	return p, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity != "warning" {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
