// Package vectorstore holds what the vector store backends share.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"ragbench/internal/domain"
)

var (
	// ErrDimensionMismatch is returned when vectors do not match the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotInitialized is returned when a store is used before Init.
	ErrNotInitialized = errors.New("vector store not initialized")
)

// CheckBatch validates an upsert batch against the store dimension.
func CheckBatch(chunks []domain.Chunk, vectors [][]float64, dimension int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(v), dimension)
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK returns the indexes of the k highest scores, best first. Ties keep
// insertion order.
func TopK(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return scores[idxs[i]] > scores[idxs[j]] })
	if k > 0 && k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}
