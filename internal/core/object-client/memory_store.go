package objectclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/markdave123-py/docrag/internal/core"
)

var _ core.ObjectClient = (*MemoryStore)(nil)

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-process ObjectClient used by tests and local runs.
// Hide simulates eventual consistency by answering not-found for the next
// n reads of a key that already exists.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]memObject
	hidden  map[string]int
	errs    map[string]error
	heads   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]memObject),
		hidden:  make(map[string]int),
		errs:    make(map[string]error),
		heads:   make(map[string]int),
	}
}

func ref(bucket, key string) string { return bucket + "/" + key }

// Hide makes the next n Head/Get calls on bucket/key report not-found.
func (m *MemoryStore) Hide(bucket, key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hidden[ref(bucket, key)] = n
}

// FailWith makes every operation touching bucket/key return err.
func (m *MemoryStore) FailWith(bucket, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[ref(bucket, key)] = err
}

// Heads reports how many HeadObject calls were made for bucket/key.
func (m *MemoryStore) Heads(bucket, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heads[ref(bucket, key)]
}

// Keys returns the sorted keys of a bucket.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ContentType returns the stored content type of an object.
func (m *MemoryStore) ContentType(bucket, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[bucket][key].contentType
}

// lookup must be called with mu held.
func (m *MemoryStore) lookup(bucket, key string) (memObject, error) {
	r := ref(bucket, key)
	if err := m.errs[r]; err != nil {
		return memObject{}, err
	}
	if n := m.hidden[r]; n > 0 {
		m.hidden[r] = n - 1
		return memObject{}, fmt.Errorf("memory %s: %w", r, core.ErrNotFound)
	}
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return memObject{}, fmt.Errorf("memory %s: %w", r, core.ErrNotFound)
	}
	return obj, nil
}

func (m *MemoryStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) HeadObject(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads[ref(bucket, key)]++
	_, err := m.lookup(bucket, key)
	return err
}

func (m *MemoryStore) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[ref(bucket, key)]; err != nil {
		return err
	}
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string]memObject)
	}
	m.buckets[bucket][key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryStore) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[srcBucket][srcKey]
	if !ok {
		return fmt.Errorf("memory copy %s: %w", ref(srcBucket, srcKey), core.ErrNotFound)
	}
	if err := m.errs[ref(dstBucket, dstKey)]; err != nil {
		return err
	}
	if m.buckets[dstBucket] == nil {
		m.buckets[dstBucket] = make(map[string]memObject)
	}
	m.buckets[dstBucket][dstKey] = obj
	return nil
}

func (m *MemoryStore) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var out []string
	for _, k := range m.Keys(bucket) {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
