package serv

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/server"
)

// mcpServer wraps the MCP server instance
type mcpServer struct {
	srv     *server.MCPServer
	service *Service
}

// newMCPServer creates a new MCP server for the service
func (s *Service) newMCPServer() *mcpServer {
	mcpSrv := server.NewMCPServer(
		s.conf.AppName,
		version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
	)

	ms := &mcpServer{
		srv:     mcpSrv,
		service: s,
	}

	ms.registerTools()
	ms.registerPrompts()
	return ms
}

// registerTools registers all MCP tools with the server
func (ms *mcpServer) registerTools() {
	// Query Analysis Tools
	ms.registerQueryTools()

	// Query Execution Tools
	ms.registerExecutionTools()

	// Cache Management Tools
	ms.registerCacheTools()

	// Resource Discovery Tools
	ms.registerResourceTools()

	// Health Tools
	ms.registerHealthTools()
}

// RunMCPStdio runs the MCP server using stdio transport (for CLI/Claude Desktop)
func (s *Service) RunMCPStdio(ctx context.Context) error {
	if s.conf.MCP.Disable {
		s.log.Warn("MCP is disabled in configuration")
	}

	ms := s.newMCPServer()
	return server.ServeStdio(ms.srv)
}

// mcpMarshalJSON marshals tool results, indented for readability
func mcpMarshalJSON(v any, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
