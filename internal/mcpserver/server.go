// Package mcpserver exposes the retrieval tool catalogue over MCP (Model
// Context Protocol) via stdio transport, so external LLM clients can call
// the same tools the built-in agent uses.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/toolreg"
)

// Server wraps the MCP server around the tool registry.
type Server struct {
	mcp      *server.MCPServer
	registry *toolreg.Registry
}

// New creates an MCP server with every registry tool registered. Tool
// names, descriptions, and schemas come straight from the registry, so
// MCP clients and the built-in agent see an identical catalogue.
func New(registry *toolreg.Registry) *Server {
	s := &Server{registry: registry}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	for _, schema := range registry.Schemas() {
		s.mcp.AddTool(buildTool(schema), s.dispatch(schema.Name))
	}

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// buildTool translates a registry schema into an MCP tool declaration.
func buildTool(schema toolreg.Schema) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(schema.Description)}
	for _, p := range schema.Params {
		var popts []mcp.PropertyOption
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		popts = append(popts, mcp.Description(p.Description))

		switch p.Type {
		case toolreg.TypeString:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		case toolreg.TypeInteger, toolreg.TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case toolreg.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		}
	}
	return mcp.NewTool(schema.Name, opts...)
}

// dispatch routes an MCP tool call through the registry, so MCP clients
// get the same validation and error taxonomy as the agent loop.
func (s *Server) dispatch(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawArgs, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res := s.registry.Dispatch(ctx, name, rawArgs)
		if res.Err != nil {
			out, _ := json.Marshal(res.Err)
			return mcp.NewToolResultError(string(out)), nil
		}

		out, err := json.MarshalIndent(res.Payload, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
