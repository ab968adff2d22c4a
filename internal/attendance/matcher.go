package attendance

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/constants"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
)

// Matcher finds the canonical embedding most similar to a probe.
type Matcher interface {
	// Best returns the highest-scoring canonical embedding, or nil when none are stored.
	// Equal scores resolve to the lowest enrollment number.
	Best(ctx context.Context, probe []float32) (*database.IndexMatch, error)
	// Add is called after a canonical embedding is saved.
	Add(enrollmentNo string, embedding []float32)
	// Remove is called after a canonical embedding is deleted.
	Remove(enrollmentNo string)
}

// NewMatcher returns the matcher for the configured index kind ("linear", "hnsw" or "pgvector").
// The pgvector kind needs a store that can run nearest-neighbour queries.
func NewMatcher(kind string, store database.CanonicalStore) (Matcher, error) {
	switch kind {
	case "", "linear":
		return NewLinearMatcher(store), nil
	case "hnsw":
		return NewHNSWMatcher(store), nil
	case "pgvector":
		finder, ok := store.(NearestFinder)
		if !ok {
			return nil, fmt.Errorf("MATCH_INDEX=pgvector requires EMBEDDING_STORE=postgres")
		}
		return NewPgvectorMatcher(finder), nil
	default:
		return nil, fmt.Errorf("unknown match index %q (expected linear, hnsw or pgvector)", kind)
	}
}

// LinearMatcher scores the probe against every stored embedding.
type LinearMatcher struct {
	store database.CanonicalStore
}

func NewLinearMatcher(store database.CanonicalStore) *LinearMatcher {
	return &LinearMatcher{store: store}
}

func (m *LinearMatcher) Best(ctx context.Context, probe []float32) (*database.IndexMatch, error) {
	embeddings, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical embeddings: %w", err)
	}
	return bestOf(probe, embeddings), nil
}

func (m *LinearMatcher) Add(string, []float32) {}
func (m *LinearMatcher) Remove(string)         {}

// bestOf is the argmax of cosine similarity. embeddings must be sorted by enrollment
// number so that a strict comparison keeps the first of equal scores.
func bestOf(probe []float32, embeddings []database.CanonicalEmbedding) *database.IndexMatch {
	var best *database.IndexMatch
	for _, e := range embeddings {
		score := fingerprint.CosineSimilarity(probe, e.Embedding)
		if best == nil || score > best.Similarity {
			best = &database.IndexMatch{EnrollmentNo: e.EnrollmentNo, Similarity: score}
		}
	}
	return best
}

// HNSWMatcher keeps an in-memory HNSW graph over the canonical store.
// The graph is reloaded when the store's count or newest update time moves past
// what was loaded, e.g. after the canonical command ran while the server was up.
// Candidates are always rescored against the stored vectors.
type HNSWMatcher struct {
	store    database.CanonicalStore
	index    *database.CanonicalIndex
	mu       sync.Mutex
	loaded   bool
	loadedAt time.Time // newest UpdatedAt seen by the last Load
}

func NewHNSWMatcher(store database.CanonicalStore) *HNSWMatcher {
	return &HNSWMatcher{store: store, index: database.NewCanonicalIndex()}
}

// Load builds the index from every stored embedding.
func (m *HNSWMatcher) Load(ctx context.Context) error {
	embeddings, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load canonical embeddings: %w", err)
	}
	var latest time.Time
	for _, e := range embeddings {
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Build(embeddings)
	m.loaded = true
	m.loadedAt = latest
	return nil
}

func (m *HNSWMatcher) ensureLoaded(ctx context.Context) error {
	m.mu.Lock()
	loaded, loadedAt := m.loaded, m.loadedAt
	m.mu.Unlock()

	if loaded {
		n, err := m.store.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count canonical embeddings: %w", err)
		}
		latest, err := m.store.LastUpdated(ctx)
		if err != nil {
			return err
		}
		if n == m.index.Count() && !latest.After(loadedAt) {
			return nil
		}
	}
	return m.Load(ctx)
}

func (m *HNSWMatcher) Best(ctx context.Context, probe []float32) (*database.IndexMatch, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	best, stale, err := m.search(ctx, probe)
	if err != nil || !stale {
		return best, err
	}
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	best, _, err = m.search(ctx, probe)
	return best, err
}

// search scores the index candidates with the vectors currently in the store.
// stale reports that a candidate changed or vanished behind the index.
func (m *HNSWMatcher) search(ctx context.Context, probe []float32) (*database.IndexMatch, bool, error) {
	if m.index.Count() == 0 {
		return nil, false, nil
	}
	matches, err := m.index.Search(probe, constants.HNSWSearchCandidates)
	if err != nil {
		return nil, false, fmt.Errorf("index search failed: %w", err)
	}

	stale := false
	current := make([]database.CanonicalEmbedding, 0, len(matches))
	for _, c := range matches {
		vec, err := m.store.Load(ctx, c.EnrollmentNo)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load canonical embedding: %w", err)
		}
		if vec == nil {
			stale = true
			continue
		}
		if !slices.Equal(vec, m.index.Vector(c.EnrollmentNo)) {
			stale = true
		}
		current = append(current, database.CanonicalEmbedding{EnrollmentNo: c.EnrollmentNo, Embedding: vec})
	}
	slices.SortFunc(current, func(a, b database.CanonicalEmbedding) int {
		return strings.Compare(a.EnrollmentNo, b.EnrollmentNo)
	})
	return bestOf(probe, current), stale, nil
}

func (m *HNSWMatcher) Add(enrollmentNo string, embedding []float32) {
	m.index.Add(enrollmentNo, embedding)
}

func (m *HNSWMatcher) Remove(enrollmentNo string) {
	m.index.Delete(enrollmentNo)
}

// NearestFinder runs nearest-neighbour queries in the database.
type NearestFinder interface {
	FindNearest(ctx context.Context, query []float32, k int) ([]database.IndexMatch, error)
}

// PgvectorMatcher delegates the search to the pgvector HNSW index.
type PgvectorMatcher struct {
	finder NearestFinder
}

func NewPgvectorMatcher(finder NearestFinder) *PgvectorMatcher {
	return &PgvectorMatcher{finder: finder}
}

func (m *PgvectorMatcher) Best(ctx context.Context, probe []float32) (*database.IndexMatch, error) {
	matches, err := m.finder.FindNearest(ctx, probe, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (m *PgvectorMatcher) Add(string, []float32) {}
func (m *PgvectorMatcher) Remove(string)         {}
