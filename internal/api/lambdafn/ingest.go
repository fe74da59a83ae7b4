package lambdafn

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/markdave123-py/docrag/internal/core/ingestion_engine"
	"github.com/markdave123-py/docrag/internal/models"
)

type IngestHandler struct {
	ingestor ingestion_engine.Ingestor
}

func NewIngestHandler(ing ingestion_engine.Ingestor) *IngestHandler {
	return &IngestHandler{ingestor: ing}
}

// Handle routes an S3 notification. An invocation without storage records
// (a manual trigger) replays the whole intake area instead.
func (h *IngestHandler) Handle(ctx context.Context, ev events.S3Event) (models.BatchResult, error) {
	batch := ingestion_engine.StorageEvents(ev)
	if len(batch) == 0 {
		slog.Info("Lambda: no storage records, running backfill")
		return h.ingestor.Backfill(ctx)
	}
	return h.ingestor.HandleBatch(ctx, batch), nil
}
