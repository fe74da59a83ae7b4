package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docrag/internal/core"
)

// TextEmbedder applies the configured long-text strategy in front of an
// EmbeddingProvider and enforces the index dimension.
type TextEmbedder struct {
	emb      core.EmbeddingProvider
	dim      int
	maxChars int
	strategy string
}

func NewTextEmbedder(emb core.EmbeddingProvider, dim, maxChars int, strategy string) *TextEmbedder {
	if maxChars <= 0 {
		maxChars = 8000
	}
	if strategy != StrategyAverage {
		strategy = StrategyTruncate
	}
	return &TextEmbedder{emb: emb, dim: dim, maxChars: maxChars, strategy: strategy}
}

// Embed returns one vector of length dim for the extracted lines of key.
func (t *TextEmbedder) Embed(ctx context.Context, key string, lines []string) ([]float32, error) {
	text := strings.Join(lines, "\n")
	n := len([]rune(text))
	if n <= t.maxChars {
		return t.embedOne(ctx, text)
	}

	if t.strategy == StrategyAverage {
		return t.embedAverage(ctx, key, lines)
	}

	slog.Warn("Embedder: truncating embedding input", "key", key, "chars", n, "max_chars", t.maxChars)
	return t.embedOne(ctx, string([]rune(text)[:t.maxChars]))
}

func (t *TextEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	vec, err := t.emb.Embed(ctx, text, t.dim)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return t.checkDim(vec)
}

func (t *TextEmbedder) checkDim(vec []float32) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed: empty vector")
	}
	if len(vec) != t.dim {
		return nil, fmt.Errorf("embed: got %d dimensions, want %d: %w", len(vec), t.dim, core.ErrDimensionMismatch)
	}
	return vec, nil
}

// embedAverage chunks lines along line boundaries, embeds every chunk and
// returns the L2-normalised mean vector.
func (t *TextEmbedder) embedAverage(ctx context.Context, key string, lines []string) ([]float32, error) {
	g, gctx := errgroup.WithContext(ctx)
	frags := streamFragments(gctx, g, lines, t.maxChars)
	chunks := streamChunk(gctx, g, frags, t.maxChars)

	var texts []string
	g.Go(func() error {
		for ch := range chunks {
			texts = append(texts, ch.Text)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("chunk %s: %w", key, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("chunk %s: %w", key, core.ErrEmptyText)
	}
	slog.Info("Embedder: averaging chunk embeddings", "key", key, "chunks", len(texts))

	var vecs [][]float32
	if be, ok := t.emb.(core.BatchEmbedder); ok {
		var err error
		if vecs, err = be.EmbedBatch(ctx, texts, t.dim); err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
	} else {
		for _, text := range texts {
			v, err := t.emb.Embed(ctx, text, t.dim)
			if err != nil {
				return nil, fmt.Errorf("embed: %w", err)
			}
			vecs = append(vecs, v)
		}
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed batch: %d vectors for %d chunks", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if _, err := t.checkDim(v); err != nil {
			return nil, err
		}
	}
	return meanNormalized(vecs, t.dim), nil
}

func meanNormalized(vecs [][]float32, dim int) []float32 {
	sum := make([]float64, dim)
	for _, v := range vecs {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	var norm float64
	for i := range sum {
		sum[i] /= float64(len(vecs))
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	for i, x := range sum {
		if norm > 0 {
			x /= norm
		}
		out[i] = float32(x)
	}
	return out
}
