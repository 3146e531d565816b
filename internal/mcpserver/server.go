// Package mcpserver exposes a user's todo tools over the Model Context
// Protocol, so external MCP clients get the same owner-scoped actions as
// the chat agent.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/tools"
)

const instructions = `Manage one user's todo list. Call read_todos before update_todo or delete_todo to find the real task ID. Use search_document for questions about the user's uploaded document.`

// Executor runs tools for one user.
type Executor interface {
	Definitions() []mcp.Tool
	Execute(ctx context.Context, name string, args map[string]any) tools.Result
}

// New creates an MCP server with every tool of exec registered.
func New(exec Executor, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"todo-agent",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, def := range exec.Definitions() {
		s.AddTool(def, Handler(exec, def.Name))
	}
	return s
}

// Handler adapts one tool to an MCP tool handler. Tool failures become
// error results, never protocol errors.
func Handler(exec Executor, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := exec.Execute(ctx, name, req.GetArguments())
		if res.IsError {
			return mcp.NewToolResultError(res.Content), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}
