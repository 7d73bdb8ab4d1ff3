// Package main provides the procrun-mcp binary: a read-only MCP server that
// lets agents list, validate, describe and diagram procedures.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	pmcp "github.com/ormasoftchile/procrun/pkg/mcp"
)

var version = "dev"

func main() {
	s := pmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
