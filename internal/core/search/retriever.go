package search

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

const (
	DefaultTopK = 5
	MaxTopK     = 100
)

// Retriever embeds a query with the ingestion model and searches the index.
// Every error it returns carries a status code (see core.StatusCode).
type Retriever struct {
	emb      core.EmbeddingProvider
	idx      core.SearchIndex
	dim      int
	maxChars int
}

func NewRetriever(emb core.EmbeddingProvider, idx core.SearchIndex, dim, maxChars int) *Retriever {
	return &Retriever{emb: emb, idx: idx, dim: dim, maxChars: maxChars}
}

// Search returns ranked results; an empty match set is a nil error with an
// empty, non-nil slice.
func (r *Retriever) Search(ctx context.Context, query string, topK int, hybrid bool) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewStatusError(http.StatusBadRequest, "Query text is required")
	}
	switch {
	case topK <= 0:
		topK = DefaultTopK
	case topK > MaxTopK:
		topK = MaxTopK
	}

	text := query
	if r.maxChars > 0 && len([]rune(text)) > r.maxChars {
		text = string([]rune(text)[:r.maxChars])
	}
	vec, err := r.emb.Embed(ctx, text, r.dim)
	if err != nil {
		return nil, core.NewStatusError(http.StatusInternalServerError, "Failed to generate embeddings for the query: %w", err)
	}
	if len(vec) == 0 {
		return nil, core.NewStatusError(http.StatusInternalServerError, "Failed to generate embeddings for the query")
	}
	if len(vec) != r.dim {
		return nil, core.NewStatusError(http.StatusBadRequest, "query vector has %d dimensions, index expects %d: %w",
			len(vec), r.dim, core.ErrDimensionMismatch)
	}

	results, err := r.idx.Search(ctx, core.SearchQuery{Text: query, Vector: vec, TopK: topK, Hybrid: hybrid})
	if err != nil {
		var se *core.StatusError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, core.NewStatusError(http.StatusInternalServerError, "Failed to search documents: %w", err)
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
