package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

// MaxIDLength bounds document identifiers.
const MaxIDLength = 512

// SanitizeID maps a storage key to a stable document id made only of
// [A-Za-z0-9_-]. Over-long ids keep a prefix plus a hash of the full key so
// distinct keys stay distinct.
func SanitizeID(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_' || r == '-',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	id := b.String()
	if strings.Trim(id, "_") == "" {
		return "doc-" + keyHash(key)
	}
	if len(id) > MaxIDLength {
		id = id[:MaxIDLength-17] + "-" + keyHash(key)
	}
	return id
}

func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// Indexer turns extracted text and its vector into a DocumentRecord.
type Indexer struct {
	idx core.SearchIndex
	now func() time.Time
}

func NewIndexer(idx core.SearchIndex) *Indexer {
	return &Indexer{idx: idx, now: func() time.Time { return time.Now().UTC() }}
}

// Index writes the record for bucket/key and returns its id. Re-indexing a
// key overwrites the previous record.
func (i *Indexer) Index(ctx context.Context, bucket, key, text string, vector []float32) (string, error) {
	rec := &models.DocumentRecord{
		ID:       SanitizeID(key),
		Filename: key,
		Text:     text,
		Vector:   vector,
		Metadata: models.DocumentMetadata{
			SourceBucket:   bucket,
			SourceKey:      key,
			ExtractionTime: i.now(),
			FileType:       strings.TrimPrefix(strings.ToLower(path.Ext(key)), "."),
		},
	}
	if err := i.idx.IndexDocument(ctx, rec); err != nil {
		return "", fmt.Errorf("index %s: %w", key, err)
	}
	return rec.ID, nil
}
