// Package llm defines the streaming model boundary used by the agent and
// its Gemini implementation.
package llm

import (
	"context"
	"iter"

	"github.com/mark3labs/mcp-go/mcp"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run one tool. Signature is opaque
// provider state that must be sent back unchanged with the call.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Signature []byte         `json:"signature,omitempty"`
}

// Message is one entry of the conversation history.
// ToolCallID and Name are set only on tool messages.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Request is everything a model needs for one invocation.
type Request struct {
	System   string
	Messages []Message
	Tools    []mcp.Tool
}

// Chunk is one streamed piece of a model response.
type Chunk struct {
	Text      string
	ToolCalls []ToolCall
}

// Model streams a response for the given request. The sequence ends after
// the last chunk, or early with a non-nil error.
type Model interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}
