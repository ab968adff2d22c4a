package database

import (
	"context"
	"fmt"
)

// Backend holds repository constructors for a storage backend
type Backend struct {
	Students   func() StudentRepository
	Faculty    func() FacultyRepository
	Classes    func() ClassRepository
	Sessions   func() SessionRepository
	Attendance func() AttendanceRepository
	Models     func() ModelRepository
}

var (
	postgresBackend     Backend
	canonicalStore      CanonicalStore
	postgresInitialized bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(backend Backend) {
	postgresBackend = backend
	postgresInitialized = true
}

// RegisterCanonicalStore registers the store holding canonical embeddings
// (flat .npy files or the pgvector table, depending on configuration).
func RegisterCanonicalStore(store CanonicalStore) {
	canonicalStore = store
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

func errNotInitialized() error {
	return fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
}

// GetStudentRepository returns a StudentRepository from the PostgreSQL backend
func GetStudentRepository(ctx context.Context) (StudentRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Students == nil {
		return nil, fmt.Errorf("PostgreSQL student repository not registered")
	}
	return postgresBackend.Students(), nil
}

// GetFacultyRepository returns a FacultyRepository from the PostgreSQL backend
func GetFacultyRepository(ctx context.Context) (FacultyRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Faculty == nil {
		return nil, fmt.Errorf("PostgreSQL faculty repository not registered")
	}
	return postgresBackend.Faculty(), nil
}

// GetClassRepository returns a ClassRepository from the PostgreSQL backend
func GetClassRepository(ctx context.Context) (ClassRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Classes == nil {
		return nil, fmt.Errorf("PostgreSQL class repository not registered")
	}
	return postgresBackend.Classes(), nil
}

// GetSessionRepository returns a SessionRepository from the PostgreSQL backend
func GetSessionRepository(ctx context.Context) (SessionRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Sessions == nil {
		return nil, fmt.Errorf("PostgreSQL session repository not registered")
	}
	return postgresBackend.Sessions(), nil
}

// GetAttendanceRepository returns an AttendanceRepository from the PostgreSQL backend
func GetAttendanceRepository(ctx context.Context) (AttendanceRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Attendance == nil {
		return nil, fmt.Errorf("PostgreSQL attendance repository not registered")
	}
	return postgresBackend.Attendance(), nil
}

// GetModelRepository returns a ModelRepository from the PostgreSQL backend
func GetModelRepository(ctx context.Context) (ModelRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized()
	}
	if postgresBackend.Models == nil {
		return nil, fmt.Errorf("PostgreSQL model repository not registered")
	}
	return postgresBackend.Models(), nil
}

// GetCanonicalStore returns the registered canonical embedding store
func GetCanonicalStore(ctx context.Context) (CanonicalStore, error) {
	if canonicalStore == nil {
		return nil, fmt.Errorf("canonical embedding store not registered")
	}
	return canonicalStore, nil
}

// ResetForTesting clears all registered backends.
func ResetForTesting() {
	postgresBackend = Backend{}
	canonicalStore = nil
	postgresInitialized = false
}
