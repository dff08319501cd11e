// Package mcpserver exposes the registered toolsets over the Model
// Context Protocol so external clients can use the same vault tools the
// block engine dispatches, via stdio transport.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/toolsets"
)

// Server bridges a toolsets.Registry to an MCP server. Sensitive tools are
// exposed too: the MCP client is a trusted operator surface, unlike the
// model-driven tool loop.
type Server struct {
	mcp *server.MCPServer
}

// New creates an MCP server exposing every tool in the registry.
func New(reg *toolsets.Registry) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			"Ansuz",
			"1.0.0",
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}

	tools, _ := reg.Merge(reg.SetNames())
	for _, t := range tools {
		s.mcp.AddTool(declare(t), handler(t))
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

// declare converts a registry tool into an MCP tool declaration.
func declare(t toolsets.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for name, spec := range t.Params {
		var propOpts []mcp.PropertyOption
		if spec.Description != "" {
			propOpts = append(propOpts, mcp.Description(spec.Description))
		}
		if spec.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch spec.Type {
		case "number":
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// handler adapts a registry tool's Run to the MCP handler signature.
func handler(t toolsets.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := t.Run(ctx, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
