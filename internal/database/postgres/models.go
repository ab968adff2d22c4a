package postgres

import (
	"context"
	"fmt"
)

// ModelRepository registers embedding models in model_info
type ModelRepository struct {
	pool *Pool
}

// NewModelRepository creates a new ModelRepository
func NewModelRepository(pool *Pool) *ModelRepository {
	return &ModelRepository{pool: pool}
}

func (r *ModelRepository) EnsureModel(ctx context.Context, modelType, filePath string) (int64, error) {
	var id int64
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.pool.QueryRow(ctx,
		`INSERT INTO model_info (model_type, file_path) VALUES ($1, $2)
		 ON CONFLICT (model_type, file_path) DO UPDATE SET model_type = EXCLUDED.model_type
		 RETURNING id`, modelType, filePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure model: %w", err)
	}
	return id, nil
}
