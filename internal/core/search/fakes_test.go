package search

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// hashEmbedder returns deterministic unit vectors seeded by the text.
type hashEmbedder struct {
	dim   int
	err   error
	calls int
}

func (h *hashEmbedder) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	n := h.dim
	if n == 0 {
		n = dim
	}
	return hashVector(strings.ToLower(text), n), nil
}

func hashVector(text string, dim int) []float32 {
	out := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))
	var norm float64
	for i := range out {
		block := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		v := float64(binary.BigEndian.Uint32(block[:4]))/math.MaxUint32*2 - 1
		out[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}
