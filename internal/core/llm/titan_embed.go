package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docrag/internal/core"
)

var _ core.EmbeddingProvider = (*TitanEmbedder)(nil)

// TitanEmbedder calls an Amazon Titan embedding model through a ModelRuntime.
type TitanEmbedder struct {
	rt    core.ModelRuntime
	model string
}

func NewTitanEmbedder(rt core.ModelRuntime, model string) *TitanEmbedder {
	if model == "" {
		model = "amazon.titan-embed-text-v1"
	}
	return &TitanEmbedder{rt: rt, model: model}
}

type titanEmbedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed returns the model's vector for text. v1 models have a fixed size, so
// dim is only sent to v2 models; callers verify the length.
func (t *TitanEmbedder) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	req := titanEmbedRequest{InputText: text}
	if strings.Contains(t.model, "embed-text-v2") {
		req.Dimensions = dim
		req.Normalize = true
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	raw, err := t.rt.InvokeModel(ctx, t.model, body)
	if err != nil {
		return nil, err
	}
	var resp titanEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode titan embedding: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("titan returned an empty embedding")
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds texts concurrently, preserving order.
func (t *TitanEmbedder) EmbedBatch(ctx context.Context, texts []string, dim int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, text := range texts {
		g.Go(func() error {
			v, err := t.Embed(gctx, text, dim)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
