package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/WilliamHails/7th-sem-project/internal/attendance"
	"github.com/WilliamHails/7th-sem-project/internal/config"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/database/filestore"
	"github.com/WilliamHails/7th-sem-project/internal/database/postgres"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

// backend is everything a command needs to run attendance operations.
type backend struct {
	pool      *postgres.Pool
	canonical database.CanonicalStore
	embedding *fingerprint.EmbeddingClient
	service   *attendance.Service
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// openCanonicalStore returns the configured canonical embedding store.
func openCanonicalStore(cfg *config.Config, pool *postgres.Pool) (database.CanonicalStore, error) {
	switch cfg.Embedding.Store {
	case "", "file":
		store, err := filestore.New(cfg.Storage.EnrollDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding directory: %w", err)
		}
		return store, nil
	case "postgres":
		return postgres.NewCanonicalRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_STORE %q (expected file or postgres)", cfg.Embedding.Store)
	}
}

// openBackend connects to PostgreSQL (running migrations), registers the
// repositories and builds the attendance service with the configured matcher.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := cfg.Embedding.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	store, err := openCanonicalStore(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	database.RegisterCanonicalStore(store)
	canonical, err := database.GetCanonicalStore(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	matcher, err := attendance.NewMatcher(cfg.Matching.Index, canonical)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if hnswMatcher, ok := matcher.(*attendance.HNSWMatcher); ok {
		if err := hnswMatcher.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to build HNSW index, it will be built on first recognition")
		}
	}

	client := fingerprint.NewEmbeddingClient(cfg.Embedding.URL)
	svc := attendance.NewService(attendance.Deps{
		Students:   postgres.NewStudentRepository(pool),
		Sessions:   postgres.NewSessionRepository(pool),
		Attendance: postgres.NewAttendanceRepository(pool),
		Models:     postgres.NewModelRepository(pool),
		Canonical:  canonical,
		Embedder:   fingerprint.NewFaceEmbedder(client, cfg.Embedding.MaxImageSize).WithDim(cfg.Embedding.Dim),
		Matcher:    matcher,
	}, attendance.Options{
		RawDir:         cfg.Storage.RawDir,
		PredictionsDir: cfg.Storage.PredictionsDir,
		Threshold:      cfg.Matching.Threshold,
		ModelPath:      cfg.Embedding.URL,
	})

	logger.Info().
		Str("embedding_store", cfg.Embedding.Store).
		Str("match_index", cfg.Matching.Index).
		Float64("threshold", cfg.Matching.Threshold).
		Msg("attendance backend ready")

	return &backend{pool: pool, canonical: canonical, embedding: client, service: svc}, nil
}
