// Package index holds the in-memory vector index built from document chunks.
package index

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// DefaultTopK is the number of chunks returned when the caller passes k <= 0.
const DefaultTopK = 4

// Entry pairs a chunk with its embedding.
type Entry struct {
	Text   string
	Vector []float32
}

// Hit is a single similarity search result.
type Hit struct {
	Position int // chunk position in the ingested sequence
	Text     string
	Score    float64 // cosine similarity, higher is closer
}

// Index is an immutable exact-search vector index tagged with the embedding
// model that produced its vectors. It is never updated in place: a new
// ingestion builds a new Index.
type Index struct {
	model      string
	dimensions int
	texts      []string
	vectors    [][]float32
	norms      []float64
}

// New validates entries and builds an Index. All vectors must be non-empty
// and share one dimensionality.
func New(model string, entries []Entry) (*Index, error) {
	if model == "" {
		return nil, fmt.Errorf("index model is required")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("index requires at least one entry")
	}

	dim := len(entries[0].Vector)
	if dim == 0 {
		return nil, fmt.Errorf("entry 0 has an empty vector: %w", domain.ErrVectorDimMismatch)
	}

	idx := &Index{
		model:      model,
		dimensions: dim,
		texts:      make([]string, len(entries)),
		vectors:    make([][]float32, len(entries)),
		norms:      make([]float64, len(entries)),
	}
	for i, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf(
				"entry %d has %d dimensions, want %d: %w", i, len(e.Vector), dim, domain.ErrVectorDimMismatch,
			)
		}
		vec := make([]float32, dim)
		copy(vec, e.Vector)
		idx.texts[i] = e.Text
		idx.vectors[i] = vec
		idx.norms[i] = norm(vec)
	}
	return idx, nil
}

// Model returns the embedding model identifier the index was built with.
func (x *Index) Model() string { return x.model }

// Dimensions returns the vector dimensionality.
func (x *Index) Dimensions() int { return x.dimensions }

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.texts) }

// Texts returns a copy of the indexed chunks in ingestion order.
func (x *Index) Texts() []string {
	out := make([]string, len(x.texts))
	copy(out, x.texts)
	return out
}

// Search returns the k chunks most similar to query by cosine similarity,
// highest score first. Equal scores keep ingestion order.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf(
			"query has %d dimensions, index has %d: %w", len(query), x.dimensions, domain.ErrVectorDimMismatch,
		)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, len(x.vectors))

	qn := norm(query)
	h := make(hitHeap, 0, k)
	for i, v := range x.vectors {
		hit := Hit{Position: i, Text: x.texts[i], Score: cosine(query, qn, v, x.norms[i])}
		if h.Len() < k {
			heap.Push(&h, hit)
			continue
		}
		if worse(h[0], hit) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(Hit)
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

// worse reports whether a ranks below b: lower score, or same score and later position.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Position > b.Position
}

// hitHeap is a min-heap keeping the worst retained hit at the root.
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
