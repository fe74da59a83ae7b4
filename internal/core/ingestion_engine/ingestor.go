package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/docrag/internal/models"
)

// Ingestor is what the entry points drive.
type Ingestor interface {
	HandleBatch(ctx context.Context, events []models.StorageEvent) models.BatchResult
	Backfill(ctx context.Context) (models.BatchResult, error)
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, ev models.StorageEvent) error
}
