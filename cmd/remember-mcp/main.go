// Package main provides the remember-mcp binary, an MCP server that lets
// agents read remembered facts and check variables files.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/yourlabs/remember/pkg/config"
	rmcp "github.com/yourlabs/remember/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s := rmcp.NewServer(version, cfg.FactsDir)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
