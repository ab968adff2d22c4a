package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// MockCanonicalStore is an in-memory implementation of database.CanonicalStore
type MockCanonicalStore struct {
	mu         sync.RWMutex
	embeddings map[string]database.CanonicalEmbedding
	saves      int64

	// Extra makes IsEmpty report false even without embeddings,
	// like a stray file in the enrollment directory.
	Extra bool

	// Error injection
	SaveError error
	ListError error
}

// NewMockCanonicalStore creates a new empty canonical store
func NewMockCanonicalStore() *MockCanonicalStore {
	return &MockCanonicalStore{embeddings: make(map[string]database.CanonicalEmbedding)}
}

func (m *MockCanonicalStore) Save(ctx context.Context, enrollmentNo string, embedding []float32, model string) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Each save gets a strictly newer timestamp.
	m.saves++
	m.embeddings[enrollmentNo] = database.CanonicalEmbedding{
		EnrollmentNo: enrollmentNo,
		Embedding:    append([]float32(nil), embedding...),
		Model:        model,
		UpdatedAt:    time.Unix(1700000000, 0).Add(time.Duration(m.saves) * time.Millisecond),
	}
	return nil
}

func (m *MockCanonicalStore) Load(ctx context.Context, enrollmentNo string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.embeddings[enrollmentNo]; ok {
		return e.Embedding, nil
	}
	return nil, nil
}

func (m *MockCanonicalStore) Has(ctx context.Context, enrollmentNo string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.embeddings[enrollmentNo]
	return ok, nil
}

func (m *MockCanonicalStore) Delete(ctx context.Context, enrollmentNo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.embeddings, enrollmentNo)
	return nil
}

func (m *MockCanonicalStore) List(ctx context.Context) ([]database.CanonicalEmbedding, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.CanonicalEmbedding, 0, len(m.embeddings))
	for _, e := range m.embeddings {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrollmentNo < result[j].EnrollmentNo })
	return result, nil
}

func (m *MockCanonicalStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings), nil
}

func (m *MockCanonicalStore) IsEmpty(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings) == 0 && !m.Extra, nil
}

func (m *MockCanonicalStore) LastUpdated(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest time.Time
	for _, e := range m.embeddings {
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
	}
	return latest, nil
}
