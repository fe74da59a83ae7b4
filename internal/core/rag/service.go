package rag

import (
	"context"
	"log/slog"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/llm"
	"github.com/markdave123-py/docrag/internal/models"
)

// Searcher is the retrieval half of a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, hybrid bool) ([]models.SearchResult, error)
}

// Generator is the generation half of a query.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string, p core.GenerationParams) llm.Generation
}

// Answer is the query response body.
type Answer struct {
	Query    string          `json:"query"`
	Response string          `json:"response"`
	Sources  []models.Source `json:"sources,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
	Model    string          `json:"model,omitempty"`
}

type Service struct {
	search     Searcher
	gen        Generator
	maxContext int
}

func NewService(search Searcher, gen Generator, maxContext int) *Service {
	return &Service{search: search, gen: gen, maxContext: maxContext}
}

// Query retrieves, assembles and generates. Retrieval errors are returned
// as-is (they carry a status code); generation failures come back as a
// degraded Answer instead.
func (s *Service) Query(ctx context.Context, req Request) (*Answer, error) {
	results, err := s.search.Search(ctx, req.Query, req.TopK, req.Hybrid)
	if err != nil {
		slog.Warn("RAG: retrieval failed", "query", req.Query, "status", core.StatusCode(err), "error", err)
		return nil, err
	}

	prompt := BuildPrompt(req.Query, AssembleContext(results, s.maxContext))
	g := s.gen.Generate(ctx, prompt, req.ModelID, req.Params)

	ans := &Answer{Query: req.Query, Response: g.Text, Degraded: g.Degraded, Model: g.ModelID}
	if req.IncludeSources {
		ans.Sources = make([]models.Source, 0, len(results))
		for _, r := range results {
			ans.Sources = append(ans.Sources, models.Source{Filename: r.Filename, Score: r.Score, Metadata: r.Metadata})
		}
	}
	slog.Info("RAG: answered", "query", req.Query, "results", len(results), "model_id", g.ModelID, "degraded", g.Degraded)
	return ans, nil
}
