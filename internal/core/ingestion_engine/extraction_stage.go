package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/ocr"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
	"github.com/markdave123-py/docrag/internal/models"
)

// TextExtractor returns the recognised lines of a stored object.
type TextExtractor interface {
	Extract(ctx context.Context, bucket, key string) ([]string, error)
}

// DocumentIndexer persists extracted text with its vector.
type DocumentIndexer interface {
	Index(ctx context.Context, bucket, key, text string, vector []float32) (string, error)
}

// ExtractionStage runs OCR, embedding and indexing for one processed-area key.
type ExtractionStage struct {
	acc      *objectclient.Accessor
	extract  TextExtractor
	embedder *TextEmbedder
	indexer  DocumentIndexer
	failures *failureSink
}

func NewExtractionStage(acc *objectclient.Accessor, extract TextExtractor, embedder *TextEmbedder, indexer DocumentIndexer, failedBucket string) *ExtractionStage {
	return &ExtractionStage{
		acc:      acc,
		extract:  extract,
		embedder: embedder,
		indexer:  indexer,
		failures: &failureSink{store: acc.Client(), bucket: failedBucket},
	}
}

var errNotEligible = errors.New("not eligible for text extraction")

// Process never fails the batch for embedding or indexing problems: those
// are logged and reported as skipped, leaving the normalized object in place.
func (s *ExtractionStage) Process(ctx context.Context, bucket, key string) models.Outcome {
	if ocr.KindOf(key) == ocr.KindNone {
		slog.Debug("Extraction: skipping key", "bucket", bucket, "key", key)
		return models.Skipped(key, models.StageNormalized, errNotEligible)
	}

	ok, err := s.acc.Exists(ctx, bucket, key)
	if err != nil {
		return s.failures.fail(ctx, bucket, key, PrefixFailedExtraction, err)
	}
	if !ok {
		slog.Warn("Extraction: object not found after retries", "bucket", bucket, "key", key)
		return models.Failed(key, fmt.Errorf("%s/%s: %w", bucket, key, core.ErrNotFound))
	}

	lines, err := s.extract.Extract(ctx, bucket, key)
	if errors.Is(err, core.ErrNotFound) {
		return models.Failed(key, err)
	}
	if err != nil {
		return s.failures.fail(ctx, bucket, key, PrefixFailedExtraction, fmt.Errorf("extract text: %w", err))
	}

	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		slog.Info("Extraction: no text found", "bucket", bucket, "key", key)
		return models.Skipped(key, models.StageNormalized, core.ErrEmptyText)
	}

	vec, err := s.embedder.Embed(ctx, key, lines)
	if err != nil {
		slog.Warn("Extraction: embedding failed, not indexing", "bucket", bucket, "key", key, "error", err)
		return models.Skipped(key, models.StageNormalized, err)
	}

	id, err := s.indexer.Index(ctx, bucket, key, text, vec)
	if err != nil {
		slog.Warn("Extraction: indexing failed", "bucket", bucket, "key", key, "error", err)
		return models.Skipped(key, models.StageNormalized, err)
	}

	slog.Info("Extraction: indexed document", "bucket", bucket, "key", key, "id", id, "chars", len(text))
	return models.Succeeded(key, models.StageNormalized, "")
}

// failureSink copies originals into the failure area. It never deletes.
type failureSink struct {
	store  core.ObjectClient
	bucket string
}

func (f *failureSink) fail(ctx context.Context, bucket, key, prefix string, reason error) models.Outcome {
	dst := prefix + key

	// The event deadline may be what failed; the copy gets its own budget.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := f.store.CopyObject(cctx, bucket, key, f.bucket, dst); err != nil {
		slog.Error("Router: copy to failure area failed",
			"bucket", bucket, "key", key, "failed_key", dst, "reason", reason, "error", err)
	} else {
		slog.Warn("Router: routed to failure area", "bucket", bucket, "key", key, "failed_key", dst, "reason", reason)
	}
	return models.Failed(key, reason)
}
