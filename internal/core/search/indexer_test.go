package search

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestSanitizeID(t *testing.T) {
	cases := map[string]string{
		"scans/2024/invoice 01.pdf": "scans_2024_invoice_01pdf",
		`win\path\a-b_c.jpg`:        "win_path_a-b_cjpg",
		"ünïcødé&$#@!.png":          "ncdpng",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeID(in), in)
	}
}

func TestSanitizeIDProperties(t *testing.T) {
	keys := []string{
		"a/b c/d?e=f&g.pdf",
		strings.Repeat("long/segment with spaces ", 60) + "end.jpg",
		"!!!",
		"",
		"日本語/ファイル.pdf",
	}
	for _, k := range keys {
		id := SanitizeID(k)
		assert.Regexp(t, idPattern, id, k)
		assert.LessOrEqual(t, len(id), MaxIDLength, k)
		assert.Equal(t, id, SanitizeID(k), "pure function")
	}
}

func TestSanitizeIDLongKeysStayDistinct(t *testing.T) {
	base := strings.Repeat("x", 600)
	a, b := SanitizeID(base+"a"), SanitizeID(base+"b")
	assert.Len(t, a, MaxIDLength)
	assert.NotEqual(t, a, b)
}

func TestIndexerIsIdempotent(t *testing.T) {
	idx := NewMemoryIndex()
	ix := NewIndexer(idx)
	ctx := context.Background()

	id1, err := ix.Index(ctx, "processed", "docs/scan.pdf", "first", []float32{1, 0})
	require.NoError(t, err)
	id2, err := ix.Index(ctx, "processed", "docs/scan.pdf", "second", []float32{0, 1})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, idx.Len())
	rec, ok := idx.Get(id1)
	require.True(t, ok)
	assert.Equal(t, "second", rec.Text)
	assert.Equal(t, "pdf", rec.Metadata.FileType)
	assert.Equal(t, "processed", rec.Metadata.SourceBucket)
	assert.Equal(t, "docs/scan.pdf", rec.Metadata.SourceKey)
}
