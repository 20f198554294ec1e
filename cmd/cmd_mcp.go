package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adtools/gaqlgate/serv"
	"github.com/adtools/gaqlgate/internal/util"
)

func mcpCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server in stdio mode (for Claude Desktop)",
		Long: `Run the MCP server using stdio transport.

Designed for AI assistant integration (Claude Desktop, etc.).
Communicates via stdin/stdout using the MCP protocol; all logging
goes to stderr.`,
		Run: cmdMCP,
	}

	c.AddCommand(mcpInfoCmd())
	return c
}

func cmdMCP(cmd *cobra.Command, args []string) {
	// Redirect CLI logger to stderr before setup to avoid corrupting
	// the JSON-RPC stream
	log = util.NewLoggerWithOutput(false, util.ParseLevel("info"), os.Stderr).Sugar()

	setup(cpath)

	s, err := serv.NewService(conf, serv.OptionSetLogOutput(os.Stderr))
	if err != nil {
		log.Fatalf("failed to initialize service: %s", err)
	}
	defer s.Close()

	// Graceful shutdown setup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := s.RunMCPStdio(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %s", err)
	}
}

// mcpInfoCmd creates the "mcp info" subcommand to display Claude Desktop config
func mcpInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show Claude Desktop configuration",
		Long: `Display the Claude Desktop MCP configuration for this project.

Outputs JSON configuration that can be added to your Claude Desktop
config file.`,
		Run: cmdMCPInfo,
	}
}

func cmdMCPInfo(cmd *cobra.Command, args []string) {
	exe, err := os.Executable()
	if err != nil {
		exe = "gaqlgate"
	}

	absPath, err := filepath.Abs(cpath)
	if err != nil {
		absPath = cpath
	}

	config := map[string]any{
		"mcpServers": map[string]any{
			"gaqlgate": map[string]any{
				"command": exe,
				"args":    []string{"mcp", "--path", absPath},
			},
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		log.Fatalf("failed to build config: %s", err)
	}

	fmt.Println("Add this to your Claude Desktop configuration:")
	fmt.Println()
	fmt.Println(string(data))
}
