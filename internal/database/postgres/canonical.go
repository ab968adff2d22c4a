package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// CanonicalRepository keeps canonical embeddings in a pgvector column.
// It implements database.CanonicalStore.
type CanonicalRepository struct {
	pool *Pool
}

// NewCanonicalRepository creates a new CanonicalRepository
func NewCanonicalRepository(pool *Pool) *CanonicalRepository {
	return &CanonicalRepository{pool: pool}
}

func (r *CanonicalRepository) Save(ctx context.Context, enrollmentNo string, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	vec := pgvector.NewVector(embedding)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO canonical_embeddings (enrollment_no, embedding, model, dim, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (enrollment_no) DO UPDATE
		 SET embedding = EXCLUDED.embedding, model = EXCLUDED.model, dim = EXCLUDED.dim, updated_at = NOW()`,
		enrollmentNo, vec, model, len(embedding))
	if err != nil {
		return fmt.Errorf("save canonical embedding: %w", mapError(err))
	}
	return nil
}

func (r *CanonicalRepository) Load(ctx context.Context, enrollmentNo string) ([]float32, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		`SELECT embedding FROM canonical_embeddings WHERE enrollment_no = $1`, enrollmentNo).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load canonical embedding: %w", err)
	}
	return vec.Slice(), nil
}

func (r *CanonicalRepository) Has(ctx context.Context, enrollmentNo string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM canonical_embeddings WHERE enrollment_no = $1)`, enrollmentNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check canonical embedding: %w", err)
	}
	return exists, nil
}

func (r *CanonicalRepository) Delete(ctx context.Context, enrollmentNo string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM canonical_embeddings WHERE enrollment_no = $1`, enrollmentNo); err != nil {
		return fmt.Errorf("delete canonical embedding: %w", err)
	}
	return nil
}

func (r *CanonicalRepository) List(ctx context.Context) ([]database.CanonicalEmbedding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT enrollment_no, embedding, model, updated_at FROM canonical_embeddings ORDER BY enrollment_no`)
	if err != nil {
		return nil, fmt.Errorf("list canonical embeddings: %w", err)
	}
	defer rows.Close()

	var result []database.CanonicalEmbedding
	for rows.Next() {
		var e database.CanonicalEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.EnrollmentNo, &vec, &e.Model, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan canonical embedding: %w", err)
		}
		e.Embedding = vec.Slice()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canonical embeddings: %w", err)
	}
	return result, nil
}

func (r *CanonicalRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM canonical_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count canonical embeddings: %w", err)
	}
	return n, nil
}

func (r *CanonicalRepository) IsEmpty(ctx context.Context) (bool, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (r *CanonicalRepository) LastUpdated(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	if err := r.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM canonical_embeddings`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest canonical update: %w", err)
	}
	return latest.Time, nil
}

// FindNearest returns the k canonical embeddings closest to the query by cosine distance,
// using the pgvector HNSW index. Ties are broken by enrollment number.
func (r *CanonicalRepository) FindNearest(ctx context.Context, query []float32, k int) ([]database.IndexMatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT enrollment_no, 1 - (embedding <=> $1) AS similarity
		 FROM canonical_embeddings
		 ORDER BY embedding <=> $1, enrollment_no
		 LIMIT $2`, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("find nearest canonical embeddings: %w", err)
	}
	defer rows.Close()

	var result []database.IndexMatch
	for rows.Next() {
		var m database.IndexMatch
		if err := rows.Scan(&m.EnrollmentNo, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan nearest canonical embedding: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest canonical embeddings: %w", err)
	}
	return result, nil
}
