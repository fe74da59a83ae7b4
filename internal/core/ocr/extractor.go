package ocr

import (
	"context"
	"path"
	"strings"

	"github.com/markdave123-py/docrag/internal/core"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
)

// Kind is the OCR route for a processed-area key.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindDocument
)

// KindOf classifies a key by extension. Images go through the synchronous
// call, page documents through the asynchronous job.
func KindOf(key string) Kind {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg", ".png":
		return KindImage
	case ".pdf", ".tif", ".tiff":
		return KindDocument
	default:
		return KindNone
	}
}

// Extractor picks the detection path for a key and returns its lines in
// service order.
type Extractor struct {
	sync  core.TextDetector
	async *JobRunner
	acc   *objectclient.Accessor
}

// NewExtractor wires the backends. async may be nil, in which case page
// documents are read and sent through sync as well.
func NewExtractor(sync core.TextDetector, async *JobRunner, acc *objectclient.Accessor) *Extractor {
	return &Extractor{sync: sync, async: async, acc: acc}
}

func (e *Extractor) Extract(ctx context.Context, bucket, key string) ([]string, error) {
	if KindOf(key) == KindDocument && e.async != nil {
		return e.async.Run(ctx, bucket, key)
	}
	data, err := e.acc.Read(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return e.sync.DetectText(ctx, key, data)
}

// JoinLines concatenates recognised lines with newlines.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
