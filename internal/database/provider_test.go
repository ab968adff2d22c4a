package database

import (
	"context"
	"testing"
)

type stubModels struct{}

func (stubModels) EnsureModel(ctx context.Context, modelType, filePath string) (int64, error) {
	return 7, nil
}

func TestProvider_NotInitialized(t *testing.T) {
	ResetForTesting()
	ctx := context.Background()

	if IsInitialized() {
		t.Fatal("expected uninitialized backend")
	}
	if _, err := GetStudentRepository(ctx); err == nil {
		t.Error("expected error for uninitialized student repository")
	}
	if _, err := GetCanonicalStore(ctx); err == nil {
		t.Error("expected error for unregistered canonical store")
	}
}

func TestProvider_RegisterAndReset(t *testing.T) {
	t.Cleanup(ResetForTesting)
	ctx := context.Background()

	RegisterPostgresBackend(Backend{
		Models: func() ModelRepository { return stubModels{} },
	})

	repo, err := GetModelRepository(ctx)
	if err != nil {
		t.Fatalf("GetModelRepository failed: %v", err)
	}
	if id, _ := repo.EnsureModel(ctx, "buffalo_l", ""); id != 7 {
		t.Errorf("expected stub id 7, got %d", id)
	}

	// Registered backend without a classes constructor.
	if _, err := GetClassRepository(ctx); err == nil {
		t.Error("expected error for unregistered class repository")
	}

	ResetForTesting()
	if _, err := GetModelRepository(ctx); err == nil {
		t.Error("expected error after reset")
	}
}
