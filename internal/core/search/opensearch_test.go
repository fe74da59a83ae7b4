package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

type capturedRequest struct {
	method, path string
	body         map[string]any
}

func newTestIndex(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*OpenSearchIndex, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c := capturedRequest{method: r.Method, path: r.URL.Path}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &c.body)
		}
		seen = append(seen, c)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewOpenSearchClient(srv.URL, nil)
	require.NoError(t, err)
	return NewOpenSearchIndex(client, "documents", 3), &seen
}

func TestOpenSearchIndexDocument(t *testing.T) {
	idx, seen := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	err := idx.IndexDocument(context.Background(), &models.DocumentRecord{
		ID:       "scans_apdf",
		Filename: "scans/a.pdf",
		Text:     "hello",
		Vector:   []float32{1, 0, 0},
		Metadata: models.DocumentMetadata{SourceBucket: "processed", SourceKey: "scans/a.pdf", FileType: "pdf", ExtractionTime: time.Unix(0, 0).UTC()},
	})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/documents/_doc/scans_apdf", req.path)
	assert.Equal(t, "scans/a.pdf", req.body["filename"])

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body["text-metadata"].(string)), &meta))
	assert.Equal(t, "processed", meta["source_bucket"])
	assert.Equal(t, "pdf", meta["file_type"])
}

func TestOpenSearchSearchParsesHits(t *testing.T) {
	idx, seen := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_score":1.8,"_source":{"filename":"inv.pdf","text":"invoice total","text-metadata":"{\"source_key\":\"inv.pdf\"}"}},
			{"_score":1.1,"_source":{"filename":"x.jpg","text":"other"}}
		]}}`)
	})

	res, err := idx.Search(context.Background(), core.SearchQuery{Text: "invoice total", Vector: []float32{1, 0, 0}, TopK: 3, Hybrid: true})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "inv.pdf", res[0].Filename)
	assert.Equal(t, "inv.pdf", res[0].Metadata["source_key"])
	assert.Empty(t, res[1].Metadata)

	req := (*seen)[0]
	assert.Equal(t, "/documents/_search", req.path)
	assert.EqualValues(t, 3, req.body["size"])
	assert.Contains(t, req.body["query"], "script_score")
}

func TestOpenSearchSearchEngineErrorKeepsStatus(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"query_shard_exception"}`)
	})

	_, err := idx.Search(context.Background(), core.SearchQuery{Text: "q", Vector: []float32{1, 2, 3}, TopK: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))
	assert.Contains(t, err.Error(), "query_shard_exception")
}

func TestOpenSearchEnsureIndexCreatesMapping(t *testing.T) {
	idx, seen := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, *seen, 2)
	create := (*seen)[1]
	assert.Equal(t, http.MethodPut, create.method)
	props := create.body["mappings"].(map[string]any)["properties"].(map[string]any)
	vector := props["vector"].(map[string]any)
	assert.Equal(t, "knn_vector", vector["type"])
	assert.EqualValues(t, 3, vector["dimension"])
}

func TestBuildQueryVectorOnly(t *testing.T) {
	body := BuildQuery(core.SearchQuery{Vector: []float32{0.5}, TopK: 7})
	knn := body["query"].(map[string]any)["knn"].(map[string]any)["vector"].(map[string]any)
	assert.Equal(t, 7, knn["k"])
	assert.Equal(t, 7, body["size"])
}
