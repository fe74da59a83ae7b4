package ingestion_engine

import "time"

// Buckets names the three storage areas of the pipeline.
type Buckets struct {
	Intake    string
	Processed string
	Failed    string
}

// Failure-area key prefixes, one per reason.
const (
	PrefixUnsupported      = "unsupported_files/"
	PrefixFailedConversion = "failed_conversions/"
	PrefixFailedExtraction = "failed_extractions/"
)

// Embedding strategies for text longer than the model input limit.
const (
	StrategyTruncate = "truncate"
	StrategyAverage  = "average"
)

// IngestConfig tunes the router.
//
// Concurrency:  how many events of one batch run at the same time.
// EventTimeout: upper bound for a single event, backoff and OCR polling included.
// EmbedDim:     required embedding length; other lengths are a soft failure.
// EmbedMaxChars: per-request embedding input limit.
// Strategy:     "truncate" cuts long text to EmbedMaxChars, "average" embeds
//               every chunk and averages the vectors.
type IngestConfig struct {
	Concurrency   int
	EventTimeout  time.Duration
	EmbedDim      int
	EmbedMaxChars int
	Strategy      string
}

// chunk is the internal representation passed through the embedding pipeline.
//
// Pos:      zero-based position of the chunk inside the document.
// Text:     chunk content (one or more fragments joined by newlines).
// TokenCnt: approximate token count, for logging.
type chunk struct {
	Pos      int
	Text     string
	TokenCnt int
}
