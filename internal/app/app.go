// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/markdave123-py/docrag/internal/config"
	"github.com/markdave123-py/docrag/internal/core"
	db "github.com/markdave123-py/docrag/internal/core/database"
	"github.com/markdave123-py/docrag/internal/core/ingestion_engine"
	"github.com/markdave123-py/docrag/internal/core/llm"
	"github.com/markdave123-py/docrag/internal/core/normalizer"
	"github.com/markdave123-py/docrag/internal/core/ocr"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
	"github.com/markdave123-py/docrag/internal/core/rag"
	"github.com/markdave123-py/docrag/internal/core/search"
)

// Deps are the external services the pipeline runs on. NewApp builds them
// from config; tests hand in fakes.
type Deps struct {
	Store    core.ObjectClient
	Index    core.SearchIndex
	Embedder core.EmbeddingProvider
	Detector core.TextDetector
	Async    core.AsyncTextDetector // nil sends page documents through Detector
	Runtime  core.ModelRuntime
	Gemini   core.TextGenerator // optional

	Sleep    objectclient.SleepFunc // nil waits on real timers
	Decoders []normalizer.Option
}

type App struct {
	Config    *config.Config
	Router    *ingestion_engine.Router
	Retriever *search.Retriever
	RAG       *rag.Service

	closers []io.Closer
}

// NewApp connects to every configured backend and wires the pipeline.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	awsCfg, err := config.LoadAWSConfig(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		d       Deps
		closers []io.Closer
	)
	fail := func(err error) (*App, error) {
		closeAll(closers)
		return nil, err
	}

	d.Store = objectclient.NewS3Client(awsCfg, cfg.S3Endpoint)
	slog.Info("App: object client ready", "region", cfg.AwsRegion, "endpoint", cfg.S3Endpoint)

	if cfg.OCRBackend == "docconv" {
		d.Detector = ocr.NewDocconvDetector(false)
	} else {
		tx := ocr.NewTextract(awsCfg)
		d.Detector, d.Async = tx, tx
	}
	slog.Info("App: text detection ready", "backend", cfg.OCRBackend)

	rt := llm.NewBedrockRuntime(awsCfg)
	d.Runtime = rt

	if cfg.EmbedProvider == "gemini" {
		emb, err := llm.NewGeminiEmbedder(appCtx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return fail(fmt.Errorf("couldn't initialize the embedder, %w", err))
		}
		d.Embedder = emb
		closers = append(closers, emb)
	} else {
		d.Embedder = llm.NewTitanEmbedder(rt, cfg.EmbedModel)
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := llm.NewGeminiLLM(appCtx, cfg.GeminiAPIKey, cfg.GenModel)
		if err != nil {
			return fail(fmt.Errorf("couldn't initialize the gemini generator, %w", err))
		}
		d.Gemini = gen
		closers = append(closers, gen)
	}

	idx, closer, err := newIndex(appCtx, cfg, awsCfg)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	d.Index = idx

	a := Build(cfg, d)
	a.closers = closers
	return a, nil
}

func newIndex(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (core.SearchIndex, io.Closer, error) {
	if cfg.SearchBackend == "pgvector" {
		dbClient, err := db.NewDatabaseClient(ctx, cfg.DatabaseURL, cfg.EmbedDim)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("App: database initialized and ready")
		return dbClient, dbClient, nil
	}

	var signer *aws.Config
	if cfg.OpenSearchSign {
		signer = &awsCfg
	}
	client, err := search.NewOpenSearchClient(cfg.OpenSearchEndpoint, signer)
	if err != nil {
		return nil, nil, err
	}
	idx := search.NewOpenSearchIndex(client, cfg.OpenSearchIndex, cfg.EmbedDim)
	if err := idx.EnsureIndex(ctx); err != nil {
		// Query-only roles may lack create rights; indexing reports its own errors.
		slog.Warn("App: could not ensure search index", "index", cfg.OpenSearchIndex, "error", err)
	}
	slog.Info("App: search index ready", "endpoint", cfg.OpenSearchEndpoint, "index", cfg.OpenSearchIndex)
	return idx, nil, nil
}

// Build wires the pipeline on top of already constructed services.
func Build(cfg *config.Config, d Deps) *App {
	acc := objectclient.NewAccessor(d.Store, cfg.StorageMaxRetries, cfg.StorageBackoffUnit)
	if d.Sleep != nil {
		acc = acc.WithSleep(d.Sleep)
	}

	var runner *ocr.JobRunner
	if d.Async != nil {
		runner = ocr.NewJobRunner(d.Async, cfg.OCRPollInterval, cfg.OCRMaxPolls)
		if d.Sleep != nil {
			runner = runner.WithSleep(d.Sleep)
		}
		runner.OnTransition = func(jobID string, from, to core.JobStatus) {
			slog.Debug("OCR: job state", "job_id", jobID, "from", from, "to", to)
		}
	}

	stage := ingestion_engine.NewExtractionStage(
		acc,
		ocr.NewExtractor(d.Detector, runner, acc),
		ingestion_engine.NewTextEmbedder(d.Embedder, cfg.EmbedDim, cfg.EmbedMaxChars, cfg.EmbedStrategy),
		search.NewIndexer(d.Index),
		cfg.FailedBucket,
	)
	router := ingestion_engine.NewRouter(
		acc,
		normalizer.New(cfg.FlattenKeys, d.Decoders...),
		stage,
		ingestion_engine.Buckets{Intake: cfg.IntakeBucket, Processed: cfg.ProcessedBucket, Failed: cfg.FailedBucket},
		ingestion_engine.IngestConfig{
			Concurrency:   cfg.IngestConcurrency,
			EventTimeout:  cfg.EventTimeout,
			EmbedDim:      cfg.EmbedDim,
			EmbedMaxChars: cfg.EmbedMaxChars,
			Strategy:      cfg.EmbedStrategy,
		},
	)

	retriever := search.NewRetriever(d.Embedder, d.Index, cfg.EmbedDim, cfg.EmbedMaxChars)
	invoker := llm.NewInvoker(d.Runtime, d.Gemini, cfg.BedrockModelID, cfg.DefaultModelFamily)

	return &App{
		Config:    cfg,
		Router:    router,
		Retriever: retriever,
		RAG:       rag.NewService(retriever, invoker, cfg.MaxContextLength),
	}
}

// Defaults are the query parameters used when a request leaves them out.
func (a *App) Defaults() rag.Defaults {
	return rag.Defaults{
		TopK:        search.DefaultTopK,
		ModelID:     a.Config.BedrockModelID,
		MaxTokens:   a.Config.MaxTokens,
		Temperature: a.Config.Temperature,
		TopP:        a.Config.TopP,
	}
}

func (a *App) Close() {
	closeAll(a.closers)
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		if err := c.Close(); err != nil {
			slog.Warn("App: close failed", "error", err)
		}
	}
}
