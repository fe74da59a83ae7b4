package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/docrag/internal/core"
)

var (
	_ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
	_ core.BatchEmbedder     = (*GeminiEmbedder)(nil)
)

// geminiBatchLimit is the most contents one BatchEmbedContents call accepts.
const geminiBatchLimit = 100

// GeminiEmbedder embeds through the Gemini API. The vector length is fixed by
// the model; callers compare it against the index dimension.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	cl, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, model: cl.EmbeddingModel(modelName)}, nil
}

func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	res, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini returned an empty embedding")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch splits texts into API-sized batches and keeps their order.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string, dim int) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))

		b := g.model.NewBatch()
		for _, t := range texts[start:end] {
			b.AddContent(genai.Text(t))
		}
		resp, err := g.model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed [%d:%d]: %w", start, end, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}
