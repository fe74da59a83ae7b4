package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/rag"
	"github.com/markdave123-py/docrag/internal/models"
)

// Querier answers a RAG request.
type Querier interface {
	Query(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

type QueryHandler struct {
	svc      Querier
	search   rag.Searcher
	defaults rag.Defaults
}

func NewQueryHandler(svc Querier, search rag.Searcher, d rag.Defaults) *QueryHandler {
	return &QueryHandler{svc: svc, search: search, defaults: d}
}

// parse reads GET parameters or a JSON body, whichever the method implies.
func (h *QueryHandler) parse(w http.ResponseWriter, r *http.Request) (rag.Request, error) {
	if r.Method == http.MethodGet {
		return rag.FromValues(r.URL.Query(), h.defaults)
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return rag.Request{}, core.NewStatusError(http.StatusBadRequest, "read body: %w", err)
	}
	return rag.FromJSON(body, h.defaults)
}

// Query handles GET|POST /api/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ans, err := h.svc.Query(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
}

// Search handles GET|POST /api/search: retrieval only, no generation.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.search.Search(r.Context(), req.Query, req.TopK, req.Hybrid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}
