package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-flash-latest"

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Gemini streams chat completions from Google's Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini model client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the configured model name.
func (g *Gemini) Name() string {
	return g.model
}

// Stream implements Model.
func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		config := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(g.temperature),
			Tools:       toGenaiTools(req.Tools),
		}
		if req.System != "" {
			config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toGenaiContents(req.Messages), config) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("gemini stream: %w", err))
				return
			}

			chunk := fromGenaiResponse(resp)
			if chunk.Text == "" && len(chunk.ToolCalls) == 0 {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// toGenaiContents converts history. Consecutive tool results are merged into
// one user turn, as Gemini expects all responses to a model turn together.
func toGenaiContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: call.Arguments,
					},
					ThoughtSignature: call.Signature,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})

		case RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{"output": m.Content},
			}}
			if n := len(contents); n > 0 && isToolResponse(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{part}})
		}
	}
	return contents
}

func isToolResponse(c *genai.Content) bool {
	return c.Role == string(genai.RoleUser) && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

// toGenaiTools converts MCP tool definitions into function declarations.
func toGenaiTools(defs []mcp.Tool) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		// Gemini rejects object schemas without properties.
		if len(def.InputSchema.Properties) > 0 {
			decl.Parameters = toGenaiSchema(def.InputSchema)
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGenaiSchema(in mcp.ToolInputSchema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(in.Properties)),
		Required:   in.Required,
	}
	for name, raw := range in.Properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s := &genai.Schema{Type: toGenaiType(prop["type"])}
		if desc, ok := prop["description"].(string); ok {
			s.Description = desc
		}
		out.Properties[name] = s
	}
	return out
}

func toGenaiType(v any) genai.Type {
	switch v {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGenaiResponse extracts text and function calls from one streamed
// response. Thinking models sign their function calls; the signature is kept
// on the call so the next request can return it.
func fromGenaiResponse(resp *genai.GenerateContentResponse) Chunk {
	var chunk Chunk
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return chunk
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		chunk.Text += part.Text
		if fc := part.FunctionCall; fc != nil {
			chunk.ToolCalls = append(chunk.ToolCalls, ToolCall{
				ID:        fc.ID,
				Name:      fc.Name,
				Arguments: fc.Args,
				Signature: part.ThoughtSignature,
			})
		}
	}
	return chunk
}
