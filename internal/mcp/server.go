package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"resumekit/internal/blocktype"
	"resumekit/internal/service"
	"resumekit/internal/storage"
)

// Server is the MCP server for the composition engine. It exposes tools so
// AI agents can build and reorder resumes through the same services the
// application uses.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter

	// Services (injected from main)
	registry     *blocktype.Registry
	blocks       *service.BlockService
	compositions *service.CompositionService
	documents    *storage.DocumentStore
}

// Deps holds all dependencies passed to the MCP server.
type Deps struct {
	Emitter      service.EventEmitter
	Registry     *blocktype.Registry
	Blocks       *service.BlockService
	Compositions *service.CompositionService
	Documents    *storage.DocumentStore
}

// New creates and configures a new MCP server with all tools.
func New(deps Deps) *Server {
	s := &Server{
		emitter:      deps.Emitter,
		registry:     deps.Registry,
		blocks:       deps.Blocks,
		compositions: deps.Compositions,
		documents:    deps.Documents,
	}

	s.mcp = server.NewMCPServer(
		"resumekit-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTypeTools()
	s.registerBlockTools()
	s.registerCompositionTools()
	s.registerDocumentTools()

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// ── helpers ────────────────────────────────────────────────

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }

func reqString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}
