// Package search indexes document records and runs hybrid or vector-only
// retrieval against them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

var _ core.SearchIndex = (*OpenSearchIndex)(nil)

// NewOpenSearchClient connects to endpoint, signing requests for the "es"
// service when awsCfg is non-nil. A bare host gets an https:// scheme.
func NewOpenSearchClient(endpoint string, awsCfg *aws.Config) (*opensearch.Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("opensearch endpoint is empty")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	cfg := opensearch.Config{Addresses: []string{endpoint}}
	if awsCfg != nil {
		signer, err := requestsigner.NewSignerWithService(*awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("opensearch signer: %w", err)
		}
		cfg.Signer = signer
	}

	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return client, nil
}

type OpenSearchIndex struct {
	client *opensearch.Client
	index  string
	dim    int
}

func NewOpenSearchIndex(client *opensearch.Client, index string, dim int) *OpenSearchIndex {
	return &OpenSearchIndex{client: client, index: index, dim: dim}
}

// openSearchDoc is the stored _source. Metadata is kept as a JSON string
// under "text-metadata".
type openSearchDoc struct {
	Filename     string    `json:"filename"`
	Text         string    `json:"text"`
	Vector       []float32 `json:"vector"`
	TextMetadata string    `json:"text-metadata"`
}

// EnsureIndex creates the index with a knn_vector mapping when it is absent.
func (o *OpenSearchIndex) EnsureIndex(ctx context.Context) error {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{o.index}}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", o.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: status %d", o.index, res.StatusCode)
	}

	mapping := map[string]any{
		"settings": map[string]any{"index": map[string]any{"knn": true}},
		"mappings": map[string]any{
			"properties": map[string]any{
				"filename":      map[string]any{"type": "keyword"},
				"text":          map[string]any{"type": "text"},
				"text-metadata": map[string]any{"type": "text", "index": false},
				"vector": map[string]any{
					"type":      "knn_vector",
					"dimension": o.dim,
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	res, err = opensearchapi.IndicesCreateRequest{Index: o.index, Body: bytes.NewReader(body)}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", o.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

// IndexDocument PUTs the record at its id, replacing any earlier version.
func (o *OpenSearchIndex) IndexDocument(ctx context.Context, doc *models.DocumentRecord) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	body, err := json.Marshal(openSearchDoc{
		Filename:     doc.Filename,
		Text:         doc.Text,
		Vector:       doc.Vector,
		TextMetadata: string(meta),
	})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      o.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index "+doc.ID, res)
	}
	return nil
}

func (o *OpenSearchIndex) Search(ctx context.Context, q core.SearchQuery) ([]models.SearchResult, error) {
	body, err := json.Marshal(BuildQuery(q))
	if err != nil {
		return nil, err
	}
	res, err := opensearchapi.SearchRequest{
		Index: []string{o.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return nil, core.NewStatusError(http.StatusBadGateway, "opensearch query failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("OpenSearch query failed", res)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64       `json:"_score"`
				Source openSearchDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]models.SearchResult, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, models.SearchResult{
			Score:    h.Score,
			Filename: h.Source.Filename,
			Text:     h.Source.Text,
			Metadata: decodeMetadata(h.Source.TextMetadata),
		})
	}
	return out, nil
}

// BuildQuery renders the query DSL body. Hybrid restricts to keyword matches
// on text and ranks them by cosine similarity; otherwise a plain k-NN query.
func BuildQuery(q core.SearchQuery) map[string]any {
	if q.Hybrid {
		return map[string]any{
			"size": q.TopK,
			"query": map[string]any{
				"script_score": map[string]any{
					"query": map[string]any{
						"bool": map[string]any{
							"should": []any{
								map[string]any{"match": map[string]any{"text": q.Text}},
							},
						},
					},
					"script": map[string]any{
						"source": "knn_score",
						"lang":   "knn",
						"params": map[string]any{
							"field":       "vector",
							"query_value": q.Vector,
							"space_type":  "cosinesimil",
						},
					},
				},
			},
		}
	}
	return map[string]any{
		"size": q.TopK,
		"query": map[string]any{
			"knn": map[string]any{
				"vector": map[string]any{
					"vector": q.Vector,
					"k":      q.TopK,
				},
			},
		},
	}
}

func decodeMetadata(s string) map[string]any {
	meta := map[string]any{}
	if s == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

func responseError(op string, res *opensearchapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return core.NewStatusError(res.StatusCode, "%s: %s", op, strings.TrimSpace(string(msg)))
}
