package core

import (
	"context"

	"github.com/markdave123-py/docrag/internal/models"
)

// ObjectClient defines interactions with S3 or any object storage.
// HeadObject and GetObject wrap ErrNotFound when the key is not visible.
type ObjectClient interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	HeadObject(ctx context.Context, bucket, key string) error
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// SearchQuery is a single retrieval request against the index.
type SearchQuery struct {
	Text   string
	Vector []float32
	TopK   int
	Hybrid bool
}

// SearchIndex abstracts the vector+text engine (OpenSearch, pgvector, memory).
// IndexDocument overwrites any record with the same ID.
type SearchIndex interface {
	IndexDocument(ctx context.Context, doc *models.DocumentRecord) error
	Search(ctx context.Context, q SearchQuery) ([]models.SearchResult, error)
}
