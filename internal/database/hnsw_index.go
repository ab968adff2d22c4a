package database

import (
	"errors"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
)

// IndexMatch is a canonical embedding returned by a nearest-neighbour search
type IndexMatch struct {
	EnrollmentNo string
	Similarity   float64
}

// CanonicalIndex wraps an HNSW graph over canonical embeddings keyed by enrollment number.
// The graph is rebuilt lazily after replacements or deletions.
type CanonicalIndex struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
	dirty   bool
	mu      sync.RWMutex
}

// NewCanonicalIndex creates a new empty index.
func NewCanonicalIndex() *CanonicalIndex {
	return &CanonicalIndex{
		vectors: make(map[string][]float32),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given embeddings.
func (h *CanonicalIndex) Build(embeddings []CanonicalEmbedding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.vectors = make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		if len(e.Embedding) == 0 {
			continue
		}
		h.vectors[e.EnrollmentNo] = e.Embedding
	}
	h.rebuildLocked()
}

// rebuildLocked recreates the graph from the vector map in key order.
func (h *CanonicalIndex) rebuildLocked() {
	h.dirty = false
	if len(h.vectors) == 0 {
		h.graph = nil
		return
	}

	keys := make([]string, 0, len(h.vectors))
	for k := range h.vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := newGraph()
	for _, k := range keys {
		g.Add(hnsw.MakeNode(k, h.vectors[k]))
	}
	h.graph = g
}

// Add inserts or replaces the embedding for a student.
func (h *CanonicalIndex) Add(enrollmentNo string, embedding []float32) {
	if len(embedding) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, exists := h.vectors[enrollmentNo]
	h.vectors[enrollmentNo] = embedding
	if exists || h.dirty {
		h.dirty = true
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(enrollmentNo, embedding))
}

// Delete removes a student from the index.
func (h *CanonicalIndex) Delete(enrollmentNo string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.vectors[enrollmentNo]; !ok {
		return
	}
	delete(h.vectors, enrollmentNo)
	h.dirty = true
}

// Search finds up to k nearest canonical embeddings, best first.
// Similarities are exact cosine similarities against the stored vectors.
func (h *CanonicalIndex) Search(query []float32, k int) ([]IndexMatch, error) {
	h.mu.Lock()
	if h.dirty {
		h.rebuildLocked()
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)
	matches := make([]IndexMatch, 0, len(neighbors))
	for _, n := range neighbors {
		vec, ok := h.vectors[n.Key]
		if !ok {
			continue
		}
		matches = append(matches, IndexMatch{
			EnrollmentNo: n.Key,
			Similarity:   fingerprint.CosineSimilarity(query, vec),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].EnrollmentNo < matches[j].EnrollmentNo
	})
	return matches, nil
}

// Vector returns the indexed embedding for a student, or nil.
func (h *CanonicalIndex) Vector(enrollmentNo string) []float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vectors[enrollmentNo]
}

// Count returns the number of indexed students.
func (h *CanonicalIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}
