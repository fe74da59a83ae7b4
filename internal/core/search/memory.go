package search

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

var _ core.SearchIndex = (*MemoryIndex)(nil)

// MemoryIndex mirrors the OpenSearch ranking rules in process: hybrid keeps
// documents sharing a term with the query, scored by 1 + cosine similarity;
// vector-only ranks every document by cosine similarity.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]models.DocumentRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]models.DocumentRecord)}
}

func (m *MemoryIndex) IndexDocument(ctx context.Context, doc *models.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Vector = append([]float32(nil), doc.Vector...)
	m.docs[doc.ID] = cp
	return nil
}

// Len is the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Get returns the record stored at id.
func (m *MemoryIndex) Get(id string) (models.DocumentRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	return d, ok
}

func (m *MemoryIndex) Search(ctx context.Context, q core.SearchQuery) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := tokenize(q.Text)
	type scored struct {
		id  string
		doc models.DocumentRecord
		s   float64
	}
	var hits []scored
	for id, d := range m.docs {
		if len(d.Vector) != len(q.Vector) {
			continue
		}
		sim := cosine(q.Vector, d.Vector)
		if q.Hybrid {
			if !sharesTerm(terms, tokenize(d.Text)) {
				continue
			}
			sim++
		}
		hits = append(hits, scored{id: id, doc: d, s: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].s != hits[j].s {
			return hits[i].s > hits[j].s
		}
		return hits[i].id < hits[j].id
	})
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		meta := map[string]any{}
		if raw, err := json.Marshal(h.doc.Metadata); err == nil {
			_ = json.Unmarshal(raw, &meta)
		}
		out = append(out, models.SearchResult{Score: h.s, Filename: h.doc.Filename, Text: h.doc.Text, Metadata: meta})
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f] = true
	}
	return out
}

func sharesTerm(a, b map[string]bool) bool {
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
