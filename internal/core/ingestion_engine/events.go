package ingestion_engine

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/markdave123-py/docrag/internal/models"
)

// StorageEvents flattens an S3 notification into router events with
// decoded keys. Records without a bucket or key are dropped.
func StorageEvents(e events.S3Event) []models.StorageEvent {
	out := make([]models.StorageEvent, 0, len(e.Records))
	for _, rec := range e.Records {
		bucket, key := rec.S3.Bucket.Name, rec.S3.Object.Key
		if bucket == "" || key == "" {
			continue
		}
		out = append(out, models.StorageEvent{Bucket: bucket, Key: DecodeKey(key)})
	}
	return out
}
