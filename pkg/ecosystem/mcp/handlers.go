package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/schema"
)

// Handlers implements the remember MCP tools.
type Handlers struct {
	// FactsDir is the default facts directory for remember/facts.
	FactsDir string
}

// HandleFacts implements the remember/facts MCP tool.
func (h *Handlers) HandleFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return errorResult("name argument is required"), nil
	}
	dir, _ := args["dir"].(string)
	if dir == "" {
		dir = h.FactsDir
	}

	store := facts.NewStore(dir, nil)
	set, err := store.Load(name)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	response := map[string]any{
		"name":  facts.FactName(name),
		"path":  store.Path(name),
		"facts": set,
	}
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleValidate implements the remember/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	f, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatIssues(errs, "error")), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d variables)", path, len(f.Remember))
	if warnings := formatIssues(errs, "warning"); warnings != "" {
		msg += "\nwarnings: " + warnings
	}
	return textResult(msg), nil
}

// HandleDeps implements the remember/deps MCP tool.
func (h *Handlers) HandleDeps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = string(diagram.FormatASCII)
	}

	f, err := schema.LoadFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	g, err := diagram.Build(f)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := diagram.Generate(g, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSchema implements the remember/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func formatIssues(errs []*schema.ValidationError, severity string) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity != severity {
			continue
		}
		msg := fmt.Sprintf("[%s] %s", e.Phase, e.Message)
		if e.Path != "" {
			msg += " at " + e.Path
		}
		msgs = append(msgs, msg)
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
