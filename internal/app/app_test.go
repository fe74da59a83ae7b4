package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docrag/internal/config"
	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/normalizer"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
	"github.com/markdave123-py/docrag/internal/core/rag"
	"github.com/markdave123-py/docrag/internal/core/search"
	"github.com/markdave123-py/docrag/internal/models"
)

const dim = 16

func testConfig() *config.Config {
	return &config.Config{
		IntakeBucket:       "intake",
		ProcessedBucket:    "processed",
		FailedBucket:       "failed",
		StorageMaxRetries:  3,
		StorageBackoffUnit: time.Second,
		OCRPollInterval:    5 * time.Second,
		OCRMaxPolls:        10,
		EmbedDim:           dim,
		EmbedMaxChars:      8000,
		EmbedStrategy:      "truncate",
		BedrockModelID:     "anthropic.claude-3-sonnet-20240229-v1:0",
		DefaultModelFamily: "claude",
		MaxTokens:          512,
		Temperature:        0.7,
		TopP:               0.9,
		MaxContextLength:   10000,
		Port:               "0",
		IngestConcurrency:  2,
		EventTimeout:       time.Minute,
	}
}

// bagEmbedder hashes every word into one of dim buckets, so texts sharing
// words point in similar directions.
type bagEmbedder struct{}

func (bagEmbedder) Embed(ctx context.Context, text string, n int) ([]float32, error) {
	v := make([]float32, n)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(w))
		v[binary.BigEndian.Uint32(sum[:4])%uint32(n)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / math.Sqrt(norm))
		}
	}
	return v, nil
}

// pagedJob finishes on the second poll and returns its lines over two pages.
type pagedJob struct {
	mu    sync.Mutex
	lines map[string][]string
	jobs  map[string]string
	polls map[string]int
}

func (p *pagedJob) StartJob(ctx context.Context, bucket, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "job-" + key
	p.jobs[id] = key
	return id, nil
}

func (p *pagedJob) PollJob(ctx context.Context, jobID, token string) (core.JobPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines := p.lines[p.jobs[jobID]]
	if token == "page-2" {
		return core.JobPage{Status: core.JobSucceeded, Lines: lines[1:]}, nil
	}
	p.polls[jobID]++
	if p.polls[jobID] == 1 {
		return core.JobPage{Status: core.JobInProgress}, nil
	}
	return core.JobPage{Status: core.JobSucceeded, Lines: lines[:1], NextToken: "page-2"}, nil
}

type noSyncDetector struct{}

func (noSyncDetector) DetectText(ctx context.Context, name string, data []byte) ([]string, error) {
	return nil, nil
}

// claudeRuntime answers every call in the messages API shape.
type claudeRuntime struct {
	mu     sync.Mutex
	models []string
	bodies []map[string]any
}

func (c *claudeRuntime) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.models = append(c.models, modelID)
	c.bodies = append(c.bodies, req)
	c.mu.Unlock()
	return []byte(`{"content":[{"type":"text","text":"The invoice total is 420 USD."}]}`), nil
}

type env struct {
	app     *App
	store   *objectclient.MemoryStore
	index   *search.MemoryIndex
	runtime *claudeRuntime
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := objectclient.NewMemoryStore()
	idx := search.NewMemoryIndex()
	rt := &claudeRuntime{}
	job := &pagedJob{
		lines: map[string][]string{"scan.pdf": {"INVOICE 2024-118", "Total due: 420 USD"}},
		jobs:  map[string]string{},
		polls: map[string]int{},
	}

	a := Build(testConfig(), Deps{
		Store:    store,
		Index:    idx,
		Embedder: bagEmbedder{},
		Detector: noSyncDetector{},
		Async:    job,
		Runtime:  rt,
		Sleep:    func(ctx context.Context, d time.Duration) error { return ctx.Err() },
		Decoders: []normalizer.Option{normalizer.WithDecoder(".heic", func(r io.Reader) (image.Image, error) {
			return png.Decode(r)
		})},
	})
	return &env{app: a, store: store, index: idx, runtime: rt}
}

func (e *env) upload(t *testing.T, key string, data []byte) models.BatchResult {
	t.Helper()
	require.NoError(t, e.store.PutObject(context.Background(), "intake", key, data, "application/octet-stream"))
	return e.app.Router.HandleBatch(context.Background(), []models.StorageEvent{{Bucket: "intake", Key: key}})
}

// notifyProcessed stands in for the processed bucket's own notification.
func (e *env) notifyProcessed(t *testing.T, keys ...string) models.BatchResult {
	t.Helper()
	evs := make([]models.StorageEvent, len(keys))
	for i, k := range keys {
		evs[i] = models.StorageEvent{Bucket: "processed", Key: k}
	}
	return e.app.Router.HandleBatch(context.Background(), evs)
}

func translucentPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			a := uint8(255)
			if x < 4 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: a})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestScenarioHEICBecomesJPEG(t *testing.T) {
	e := newEnv(t)

	res := e.upload(t, "photo.heic", translucentPNG(t))
	require.Equal(t, []string{"photo.jpg"}, res.Processed)
	assert.Empty(t, res.Failed)

	data, err := e.store.GetObject(context.Background(), "processed", "photo.jpg")
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	_, isColor := img.(*image.YCbCr)
	assert.True(t, isColor, "decoded as %T", img)

	// Transparent pixels land on white.
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Greater(t, r>>8, uint32(230))
	assert.Greater(t, g>>8, uint32(230))
	assert.Greater(t, b>>8, uint32(230))
}

func TestScenarioScannedPDFIsIndexed(t *testing.T) {
	e := newEnv(t)

	res := e.upload(t, "scan.pdf", []byte("%PDF-1.7 scanned"))
	require.Equal(t, []string{"scan.pdf"}, res.Processed)

	res = e.notifyProcessed(t, "scan.pdf")
	require.Equal(t, []string{"scan.pdf"}, res.Processed)
	// A repeated notification overwrites the same record.
	e.notifyProcessed(t, "scan.pdf")

	require.Equal(t, 1, e.index.Len())
	rec, ok := e.index.Get(search.SanitizeID("scan.pdf"))
	require.True(t, ok)
	assert.Equal(t, "INVOICE 2024-118\nTotal due: 420 USD", rec.Text)
	assert.Len(t, rec.Vector, dim)
	assert.Equal(t, "processed", rec.Metadata.SourceBucket)
	assert.Equal(t, "pdf", rec.Metadata.FileType)
}

func TestScenarioTextClippingOnlyFails(t *testing.T) {
	e := newEnv(t)

	res := e.upload(t, "note.textclipping", []byte("clip"))
	assert.Equal(t, []string{"note.textclipping"}, res.Failed)
	assert.Empty(t, res.Processed)
	assert.Empty(t, e.store.Keys("processed"))
	assert.Equal(t, []string{"unsupported_files/note.textclipping"}, e.store.Keys("failed"))
}

func seed(t *testing.T, e *env) {
	t.Helper()
	docs := map[string]string{
		"invoice.pdf":  "Invoice total due 420 USD payable in 30 days",
		"meeting.pdf":  "Minutes of the quarterly planning meeting",
		"vacation.jpg": "Photos from the beach holiday in August",
	}
	ix := search.NewIndexer(e.index)
	for key, text := range docs {
		vec, err := bagEmbedder{}.Embed(context.Background(), text, dim)
		require.NoError(t, err)
		_, err = ix.Index(context.Background(), "processed", key, text, vec)
		require.NoError(t, err)
	}
}

func TestScenarioHybridQueryRanksMatchFirst(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	ans, err := e.app.RAG.Query(context.Background(), rag.Request{
		Query: "invoice total", TopK: 3, Hybrid: true, IncludeSources: true,
		ModelID: e.app.Config.BedrockModelID,
		Params:  core.GenerationParams{MaxTokens: 256, Temperature: 0.2, TopP: 0.9},
	})
	require.NoError(t, err)
	require.NotEmpty(t, ans.Sources)
	assert.LessOrEqual(t, len(ans.Sources), 3)
	assert.Equal(t, "invoice.pdf", ans.Sources[0].Filename)
	assert.Equal(t, "The invoice total is 420 USD.", ans.Response)
	assert.False(t, ans.Degraded)

	require.Len(t, e.runtime.bodies, 1)
	msgs := e.runtime.bodies[0]["messages"].([]any)
	prompt := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, prompt, "Document: invoice.pdf")
	assert.Contains(t, prompt, "USER QUESTION: invoice total")
}

func TestScenarioVectorQueryOverHTTP(t *testing.T) {
	e := newEnv(t)
	seed(t, e)
	srv := httptest.NewServer(Routes(e.app))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?q=invoice+total&k=3&hybrid=false")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []models.SearchResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 3)
	assert.Equal(t, "invoice.pdf", body.Results[0].Filename)
}

func TestHTTPQueryAndHealth(t *testing.T) {
	e := newEnv(t)
	seed(t, e)
	srv := httptest.NewServer(Routes(e.app))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"invoice total","include_sources":false,"model":"mystery-model"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ans rag.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ans))
	assert.Empty(t, ans.Sources)
	assert.Equal(t, []string{e.app.Config.BedrockModelID}, e.runtime.models, "unknown ids fall back to the default model")

	resp2, err := http.Get(srv.URL + "/api/query")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHTTPEventsAndBackfill(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(Routes(e.app))
	defer srv.Close()

	require.NoError(t, e.store.PutObject(context.Background(), "intake", "a b.pdf", []byte("%PDF"), ""))
	notification := `{"Records":[{"s3":{"bucket":{"name":"intake"},"object":{"key":"a+b.pdf"}}}]}`
	resp, err := http.Post(srv.URL+"/api/events", "application/json", strings.NewReader(notification))
	require.NoError(t, err)
	var res models.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, []string{"a b.pdf"}, res.Processed)

	require.NoError(t, e.store.PutObject(context.Background(), "intake", "later.png", translucentPNG(t), ""))
	resp, err = http.Post(srv.URL+"/api/backfill", "application/json", nil)
	require.NoError(t, err)
	res = models.BatchResult{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, []string{"later.jpg"}, res.Processed)
	assert.Equal(t, []string{"a b.pdf"}, res.Skipped)
}
