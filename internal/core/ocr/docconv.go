package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docrag/internal/core"
)

var _ core.TextDetector = (*DocconvDetector)(nil)

// DocconvDetector extracts text locally with sajari/docconv. Image input
// needs a binary built with the docconv "ocr" tag (tesseract).
type DocconvDetector struct {
	useReadability bool
}

func NewDocconvDetector(useReadability bool) *DocconvDetector {
	return &DocconvDetector{useReadability: useReadability}
}

func (d *DocconvDetector) DetectText(ctx context.Context, name string, data []byte) ([]string, error) {
	mime := docconv.MimeTypeByExtension(name)
	res, err := docconv.Convert(bytes.NewReader(data), mime, d.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv %s (%s): %w", name, mime, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return splitLines(res.Body), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
