package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "gemini-embedding-001"

	// embedBatchSize is the most texts the API accepts in one request.
	embedBatchSize = 100
)

// embedAPI is the subset of *genai.Models used for embeddings.
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds document chunks and questions with a Gemini
// embedding model.
type GeminiEmbedder struct {
	api   embedAPI
	model string
}

// Embedder returns an embedder sharing g's client. An empty model selects
// DefaultEmbeddingModel.
func (g *Gemini) Embedder(model string) *GeminiEmbedder {
	return newGeminiEmbedder(g.client.Models, model)
}

func newGeminiEmbedder(api embedAPI, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GeminiEmbedder{api: api, model: model}
}

// EmbedDocuments returns one vector per text, in order.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end], "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery returns the vector for a search question.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.api.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: taskType})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini embed: empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
