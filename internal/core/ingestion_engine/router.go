package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/normalizer"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
	"github.com/markdave123-py/docrag/internal/models"
)

var _ Ingestor = (*Router)(nil)

// Router moves every storage event through INTAKE -> NORMALIZED | FAILED
// and hands normalized objects to the extraction stage.
type Router struct {
	acc      *objectclient.Accessor
	store    core.ObjectClient
	norm     *normalizer.Normalizer
	extract  *ExtractionStage
	buckets  Buckets
	cfg      IngestConfig
	failures *failureSink
	jobs     chan models.StorageEvent

	// OnOutcome, when set, observes every outcome produced by the worker pool.
	OnOutcome func(models.Outcome)
}

func NewRouter(acc *objectclient.Accessor, norm *normalizer.Normalizer, extract *ExtractionStage, buckets Buckets, cfg IngestConfig) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 5 * time.Minute
	}
	return &Router{
		acc:      acc,
		store:    acc.Client(),
		norm:     norm,
		extract:  extract,
		buckets:  buckets,
		cfg:      cfg,
		failures: &failureSink{store: acc.Client(), bucket: buckets.Failed},
		jobs:     make(chan models.StorageEvent, 64),
	}
}

// DecodeKey undoes the form encoding of keys in storage notifications.
func DecodeKey(raw string) string {
	k, err := url.QueryUnescape(raw)
	if err != nil {
		return strings.ReplaceAll(raw, "+", " ")
	}
	return k
}

// HandleBatch routes every event independently; one failing key never
// aborts its siblings. Results keep the input order.
func (r *Router) HandleBatch(ctx context.Context, events []models.StorageEvent) models.BatchResult {
	outcomes := make([]models.Outcome, len(events))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, ev := range events {
		g.Go(func() error {
			outcomes[i] = r.routeWithTimeout(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	res := models.BatchResult{Processed: []string{}, Failed: []string{}}
	for _, o := range outcomes {
		res.Add(o)
	}
	slog.Info("Router: batch done",
		"events", len(events), "processed", len(res.Processed), "failed", len(res.Failed), "skipped", len(res.Skipped))
	return res
}

func (r *Router) routeWithTimeout(ctx context.Context, ev models.StorageEvent) models.Outcome {
	ectx, cancel := context.WithTimeout(ctx, r.cfg.EventTimeout)
	defer cancel()
	return r.Route(ectx, ev)
}

// Route processes one event. A panic inside a stage is treated like any
// other unhandled failure: the original is copied to the failure area.
func (r *Router) Route(ctx context.Context, ev models.StorageEvent) (out models.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			prefix := PrefixFailedConversion
			if ev.Bucket == r.buckets.Processed {
				prefix = PrefixFailedExtraction
			}
			out = r.failures.fail(ctx, ev.Bucket, ev.Key, prefix, fmt.Errorf("panic: %v", p))
		}
	}()

	switch ev.Bucket {
	case r.buckets.Intake:
		return r.routeIntake(ctx, ev.Key)
	case r.buckets.Processed:
		return r.extract.Process(ctx, ev.Bucket, ev.Key)
	default:
		slog.Warn("Router: event from unknown bucket", "bucket", ev.Bucket, "key", ev.Key)
		return models.Skipped(ev.Key, "", fmt.Errorf("bucket %q is not part of the pipeline", ev.Bucket))
	}
}

func (r *Router) routeIntake(ctx context.Context, key string) models.Outcome {
	bucket := r.buckets.Intake

	ok, err := r.acc.Exists(ctx, bucket, key)
	if err != nil {
		return r.failures.fail(ctx, bucket, key, PrefixFailedConversion, err)
	}
	if !ok {
		slog.Warn("Router: object not found after retries", "bucket", bucket, "key", key)
		return models.Failed(key, fmt.Errorf("%s/%s: %w", bucket, key, core.ErrNotFound))
	}

	class := normalizer.Classify(key)
	switch class {
	case normalizer.ClassRejected:
		return r.failures.fail(ctx, bucket, key, PrefixUnsupported,
			fmt.Errorf("%s: %w", key, core.ErrUnsupportedFormat))

	case normalizer.ClassConvertible:
		data, err := r.acc.Read(ctx, bucket, key)
		if err != nil {
			return r.failures.fail(ctx, bucket, key, PrefixFailedConversion, err)
		}
		res, err := r.norm.Normalize(key, data)
		if err != nil {
			return r.failures.fail(ctx, bucket, key, PrefixFailedConversion, err)
		}
		if err := r.store.PutObject(ctx, r.buckets.Processed, res.Key, res.Data, res.ContentType); err != nil {
			return r.failures.fail(ctx, bucket, key, PrefixFailedConversion, err)
		}
		slog.Info("Router: normalized", "key", key, "dest_key", res.Key, "bytes", len(res.Data))
		return models.Succeeded(key, models.StageNormalized, res.Key)

	default:
		dst := r.norm.DestinationKey(key)
		if err := r.store.CopyObject(ctx, bucket, key, r.buckets.Processed, dst); err != nil {
			return r.failures.fail(ctx, bucket, key, PrefixFailedConversion, err)
		}
		slog.Info("Router: copied as-is", "key", key, "dest_key", dst, "class", class.String())
		return models.Succeeded(key, models.StageNormalized, dst)
	}
}

// Backfill replays the whole intake area, skipping keys whose destination
// already exists in the processed area.
func (r *Router) Backfill(ctx context.Context) (models.BatchResult, error) {
	keys, err := r.store.ListKeys(ctx, r.buckets.Intake, "")
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("list intake: %w", err)
	}
	existing, err := r.store.ListKeys(ctx, r.buckets.Processed, "")
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("list processed: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, k := range existing {
		have[k] = true
	}

	var (
		events  []models.StorageEvent
		skipped []string
	)
	for _, k := range keys {
		if normalizer.Classify(k) != normalizer.ClassRejected && have[r.norm.DestinationKey(k)] {
			skipped = append(skipped, k)
			continue
		}
		events = append(events, models.StorageEvent{Bucket: r.buckets.Intake, Key: k})
	}
	slog.Info("Router: backfill", "intake_keys", len(keys), "to_route", len(events), "already_done", len(skipped))

	res := r.HandleBatch(ctx, events)
	res.Skipped = append(res.Skipped, skipped...)
	return res, nil
}
