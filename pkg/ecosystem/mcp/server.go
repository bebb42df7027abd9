package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with remember tools registered.
// Facts are read from factsDir unless a call names another directory.
func NewServer(version, factsDir string) *server.MCPServer {
	s := server.NewMCPServer(
		"remember",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{FactsDir: factsDir}

	s.AddTool(
		mcp.NewTool("remember/facts",
			mcp.WithDescription("Read the facts remembered under a fact name"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Fact name, as printed by `remember path`")),
			mcp.WithString("dir", mcp.Description("Facts directory (optional)")),
		),
		h.HandleFacts,
	)

	s.AddTool(
		mcp.NewTool("remember/validate",
			mcp.WithDescription("Validate a remember variables YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the variables YAML file")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("remember/deps",
			mcp.WithDescription("Show which variables each question, default and when-clause reads"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the variables YAML file")),
			mcp.WithString("format", mcp.Description("Output format: ascii (default) or mermaid")),
		),
		h.HandleDeps,
	)

	s.AddTool(
		mcp.NewTool("remember/schema",
			mcp.WithDescription("Export the JSON Schema of remember variables files"),
		),
		h.HandleSchema,
	)

	return s
}
