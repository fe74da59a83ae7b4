package ingestion_engine

import (
	"context"
	"log/slog"

	"github.com/markdave123-py/docrag/internal/models"
)

// Start runs numWorkers goroutines that route queued events until ctx is done.
func (r *Router) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					slog.Info("Router: worker shutting down", "worker", w)
					return
				case ev := <-r.jobs:
					slog.Debug("Router: processing queued event", "worker", w, "bucket", ev.Bucket, "key", ev.Key)
					out := r.routeWithTimeout(ctx, ev)
					if out.Status == models.OutcomeFailed {
						slog.Warn("Router: queued event failed", "key", ev.Key, "reason", out.Reason)
					}
					if r.OnOutcome != nil {
						r.OnOutcome(out)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules an event for the worker pool.
// If the queue is full, this call will block until space frees up or ctx ends.
func (r *Router) Enqueue(ctx context.Context, ev models.StorageEvent) error {
	select {
	case r.jobs <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
