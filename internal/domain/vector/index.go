// Package vector holds an exact inner-product index over L2-normalized
// embeddings of document chunks.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
)

// ErrLengthMismatch is returned when chunks and vectors differ in count.
var ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

// Normalize scales v to unit L2 norm in place. A zero vector stays zero.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Hit is one search result.
type Hit struct {
	Chunk chunk.Chunk
	Score float32
}

// Index stores chunks alongside their normalized vectors. It is immutable
// after New and safe for concurrent readers.
type Index struct {
	chunks  []chunk.Chunk
	vectors [][]float32
	dim     int
}

// New builds an index. Vectors are copied and normalized; every vector must
// share the dimension of the first one.
func New(chunks []chunk.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}

	idx := &Index{
		chunks:  make([]chunk.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(idx.chunks, chunks)

	for i, v := range vectors {
		if i == 0 {
			idx.dim = len(v)
		}
		if len(v) != idx.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w",
				i, len(v), idx.dim, domain.ErrVectorDimMismatch)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		Normalize(cp)
		idx.vectors[i] = cp
	}
	return idx, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

// Dim returns the vector dimension, 0 for an empty index.
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// Chunks returns the indexed chunks in insertion order.
func (idx *Index) Chunks() []chunk.Chunk {
	if idx == nil {
		return nil
	}
	return idx.chunks
}

// Vectors returns the normalized vectors in insertion order. Callers must not modify them.
func (idx *Index) Vectors() [][]float32 {
	if idx == nil {
		return nil
	}
	return idx.vectors
}

// Search returns at most k chunks ordered by descending cosine similarity to
// query. Equal scores keep insertion order. The query is not modified.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if idx.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, index %d: %w",
			len(query), idx.dim, domain.ErrVectorDimMismatch)
	}

	q := make([]float32, len(query))
	copy(q, query)
	Normalize(q)

	hits := make([]Hit, len(idx.chunks))
	for i, v := range idx.vectors {
		hits[i] = Hit{Chunk: idx.chunks[i], Score: dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
