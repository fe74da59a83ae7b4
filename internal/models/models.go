package models

import (
	"time"
)

// Stage is the storage area an object currently occupies.
type Stage string

const (
	StageIntake     Stage = "INTAKE"
	StageNormalized Stage = "NORMALIZED"
	StageFailed     Stage = "FAILED"
)

// StorageEvent is one record of a storage notification batch.
// Key is already percent-decoded.
type StorageEvent struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// OutcomeStatus is the result class of routing a single event.
type OutcomeStatus int

const (
	OutcomeSucceeded OutcomeStatus = iota
	OutcomeSkipped
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what a pipeline stage reports back to the router.
type Outcome struct {
	Key     string
	Status  OutcomeStatus
	Stage   Stage  // stage the key ended in
	DestKey string // key written by the stage, if any
	Reason  error
}

// Succeeded builds a success outcome.
func Succeeded(key string, stage Stage, destKey string) Outcome {
	return Outcome{Key: key, Status: OutcomeSucceeded, Stage: stage, DestKey: destKey}
}

// Skipped builds a no-op outcome.
func Skipped(key string, stage Stage, reason error) Outcome {
	return Outcome{Key: key, Status: OutcomeSkipped, Stage: stage, Reason: reason}
}

// Failed builds a failure outcome. The key is logically in the FAILED stage.
func Failed(key string, reason error) Outcome {
	return Outcome{Key: key, Status: OutcomeFailed, Stage: StageFailed, Reason: reason}
}

// BatchResult is returned by the ingestion entry point.
type BatchResult struct {
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Add records an outcome in the matching list.
func (b *BatchResult) Add(o Outcome) {
	switch o.Status {
	case OutcomeSucceeded:
		key := o.DestKey
		if key == "" {
			key = o.Key
		}
		b.Processed = append(b.Processed, key)
	case OutcomeFailed:
		b.Failed = append(b.Failed, o.Key)
	default:
		b.Skipped = append(b.Skipped, o.Key)
	}
}

// DocumentMetadata describes where an indexed document came from.
type DocumentMetadata struct {
	SourceBucket   string    `json:"source_bucket"`
	SourceKey      string    `json:"source_key"`
	ExtractionTime time.Time `json:"extraction_time"`
	FileType       string    `json:"file_type"`
}

// DocumentRecord is the unit written to the search index.
type DocumentRecord struct {
	ID       string           `json:"id"`
	Filename string           `json:"filename"`
	Text     string           `json:"text"`
	Vector   []float32        `json:"vector"`
	Metadata DocumentMetadata `json:"metadata"`
}

// SearchResult is a single ranked hit. Score is engine-defined and only
// comparable within one query.
type SearchResult struct {
	Score    float64        `json:"score"`
	Filename string         `json:"filename"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Source is the trimmed view of a result returned alongside an answer.
type Source struct {
	Filename string         `json:"filename"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}
