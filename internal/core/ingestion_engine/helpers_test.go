package ingestion_engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docrag/internal/core/normalizer"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
	"github.com/markdave123-py/docrag/internal/core/search"
)

const testDim = 8

var testBuckets = Buckets{Intake: "intake", Processed: "processed", Failed: "failed"}

type fakeExtractor struct {
	mu    sync.Mutex
	lines map[string][]string
	errs  map[string]error
	panic string
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, bucket, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if key == f.panic {
		panic("detector exploded")
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.lines[key], nil
}

// fakeEmbedder derives a vector from the text hash; fail makes every call error.
type fakeEmbedder struct {
	mu     sync.Mutex
	dim    int
	fail   error
	inputs []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.fail != nil {
		return nil, f.fail
	}
	n := f.dim
	if n == 0 {
		n = dim
	}
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(sum[i%len(sum)]) / 255
	}
	return v, nil
}

type harness struct {
	store     *objectclient.MemoryStore
	index     *search.MemoryIndex
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	router    *Router
}

func instant(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := objectclient.NewMemoryStore()
	acc := objectclient.NewAccessor(store, 3, time.Second).WithSleep(instant)
	idx := search.NewMemoryIndex()
	ex := &fakeExtractor{lines: map[string][]string{}, errs: map[string]error{}}
	emb := &fakeEmbedder{}

	norm := normalizer.New(false, normalizer.WithDecoder(".heic", func(r io.Reader) (image.Image, error) {
		return png.Decode(r)
	}))
	stage := NewExtractionStage(acc, ex, NewTextEmbedder(emb, testDim, 8000, StrategyTruncate), search.NewIndexer(idx), testBuckets.Failed)
	router := NewRouter(acc, norm, stage, testBuckets, IngestConfig{Concurrency: 3, EventTimeout: time.Minute})

	return &harness{store: store, index: idx, extractor: ex, embedder: emb, router: router}
}

func (h *harness) put(t *testing.T, bucket, key string, data []byte) {
	t.Helper()
	require.NoError(t, h.store.PutObject(context.Background(), bucket, key, data, "application/octet-stream"))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.NRGBA{A: 0})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errBoom = errors.New("boom")
