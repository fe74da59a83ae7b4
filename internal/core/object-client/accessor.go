package objectclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/docrag/internal/core"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Accessor masks read-after-write lag on object storage: a not-found answer
// is retried with exponential backoff, anything else is returned at once.
type Accessor struct {
	client     core.ObjectClient
	maxRetries int
	unit       time.Duration
	sleep      SleepFunc
}

func NewAccessor(client core.ObjectClient, maxRetries int, unit time.Duration) *Accessor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Accessor{client: client, maxRetries: maxRetries, unit: unit, sleep: ContextSleep}
}

// WithSleep returns a copy that suspends through s.
func (a *Accessor) WithSleep(s SleepFunc) *Accessor {
	cp := *a
	cp.sleep = s
	return &cp
}

// WithRetries returns a copy with a different attempt bound.
func (a *Accessor) WithRetries(n int) *Accessor {
	cp := *a
	if n < 1 {
		n = 1
	}
	cp.maxRetries = n
	return &cp
}

// Client exposes the wrapped store for writes.
func (a *Accessor) Client() core.ObjectClient { return a.client }

// Exists makes up to maxRetries HEAD attempts. It reports false, nil when the
// key stayed invisible throughout.
func (a *Accessor) Exists(ctx context.Context, bucket, key string) (bool, error) {
	err := a.retry(ctx, bucket, key, func() error {
		return a.client.HeadObject(ctx, bucket, key)
	})
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Read is Exists for GET. An exhausted key yields an error wrapping core.ErrNotFound.
func (a *Accessor) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := a.retry(ctx, bucket, key, func() error {
		var err error
		data, err = a.client.GetObject(ctx, bucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (a *Accessor) retry(ctx context.Context, bucket, key string, op func() error) error {
	var err error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if attempt == a.maxRetries-1 {
			break
		}
		delay := a.unit << attempt
		slog.Debug("Accessor: object not visible yet, backing off",
			"bucket", bucket, "key", key, "attempt", attempt+1, "delay", delay)
		if serr := a.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("waiting for %s/%s: %w", bucket, key, serr)
		}
	}
	return fmt.Errorf("%s/%s after %d attempts: %w", bucket, key, a.maxRetries, err)
}

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
