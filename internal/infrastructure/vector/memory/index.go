package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
)

// Index is an in-process brute-force cosine similarity index. The first
// inserted entry fixes the dimensionality; a batch containing a vector
// of any other length is rejected whole, leaving the stored entries
// untouched. Search is safe to run concurrently with other searches and
// with inserts.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.VectorEntry
}

func NewIndex() *Index {
	return &Index{}
}

// Factory hands every session its own empty Index.
type Factory struct{}

func (Factory) NewIndex(string) ports.VectorIndex {
	return NewIndex()
}

func (x *Index) Insert(_ context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dimension := x.dimension
	if dimension == 0 {
		dimension = len(entries[0].Vector)
		if dimension == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "insert entries",
				fmt.Errorf("zero-length vector"))
		}
	}
	for i, entry := range entries {
		if len(entry.Vector) != dimension {
			return domain.WrapError(domain.ErrDimensionMismatch, "insert entries",
				fmt.Errorf("entry %d has dimension %d, index has %d", i, len(entry.Vector), dimension))
		}
	}

	x.dimension = dimension
	x.entries = append(x.entries, entries...)
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search entries",
			fmt.Errorf("k must be positive, got %d", k))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return nil, nil
	}
	if len(queryVector) != x.dimension {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "search entries",
			fmt.Errorf("query has dimension %d, index has %d", len(queryVector), x.dimension))
	}

	scored := make([]domain.RetrievedChunk, len(x.entries))
	for i, entry := range x.entries {
		scored[i] = domain.RetrievedChunk{
			Chunk: entry.Chunk,
			Score: cosine(queryVector, entry.Vector),
		}
	}
	// Stable keeps insertion order on tied scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (x *Index) Destroy(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dimension = 0
	x.entries = nil
	return nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
