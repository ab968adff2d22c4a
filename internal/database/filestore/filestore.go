// Package filestore keeps canonical embeddings as one NumPy .npy file per student.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sbinet/npyio"

	"github.com/WilliamHails/7th-sem-project/internal/constants"
	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// Store implements database.CanonicalStore on a directory of
// <enrollment_no>__canonical.npy files holding 1-D float32 arrays.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create enrollment directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the canonical file path for a student.
func (s *Store) Path(enrollmentNo string) string {
	return filepath.Join(s.dir, enrollmentNo+constants.CanonicalSuffix)
}

// ValidateEnrollmentNo rejects values that cannot be used as a file name prefix.
func ValidateEnrollmentNo(enrollmentNo string) error {
	if enrollmentNo == "" {
		return errors.New("enrollment number is required")
	}
	if strings.ContainsAny(enrollmentNo, `/\`) || enrollmentNo == "." || enrollmentNo == ".." {
		return fmt.Errorf("invalid enrollment number %q", enrollmentNo)
	}
	return nil
}

// Save writes the embedding, replacing any existing file.
func (s *Store) Save(ctx context.Context, enrollmentNo string, embedding []float32, model string) error {
	if err := ValidateEnrollmentNo(enrollmentNo); err != nil {
		return err
	}
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}

	var buf bytes.Buffer
	if err := npyio.Write(&buf, embedding); err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(s.dir, ".canonical-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write embedding: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(enrollmentNo)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save embedding: %w", err)
	}
	return nil
}

func readNPY(path string) ([]float32, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vec []float32
	if err := npyio.Read(f, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return vec, nil
}

// Load returns the stored embedding, or nil if there is none.
func (s *Store) Load(ctx context.Context, enrollmentNo string) ([]float32, error) {
	if err := ValidateEnrollmentNo(enrollmentNo); err != nil {
		return nil, err
	}
	vec, err := readNPY(s.Path(enrollmentNo))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return vec, err
}

// Has reports whether a canonical file exists for the student.
func (s *Store) Has(ctx context.Context, enrollmentNo string) (bool, error) {
	if ValidateEnrollmentNo(enrollmentNo) != nil {
		return false, nil
	}
	_, err := os.Stat(s.Path(enrollmentNo))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the canonical file. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, enrollmentNo string) error {
	if err := ValidateEnrollmentNo(enrollmentNo); err != nil {
		return err
	}
	if err := os.Remove(s.Path(enrollmentNo)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List loads every canonical file, ordered by enrollment number.
// Entries not ending in __canonical.npy are ignored.
func (s *Store) List(ctx context.Context) ([]database.CanonicalEmbedding, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read enrollment directory: %w", err)
	}

	var result []database.CanonicalEmbedding
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, constants.CanonicalSuffix) {
			continue
		}
		enrollmentNo := strings.TrimSuffix(name, constants.CanonicalSuffix)
		if enrollmentNo == "" {
			continue
		}

		vec, err := readNPY(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		emb := database.CanonicalEmbedding{EnrollmentNo: enrollmentNo, Embedding: vec}
		if info, err := entry.Info(); err == nil {
			emb.UpdatedAt = info.ModTime()
		}
		result = append(result, emb)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EnrollmentNo < result[j].EnrollmentNo
	})
	return result, nil
}

// Count returns the number of canonical files.
func (s *Store) Count(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read enrollment directory: %w", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), constants.CanonicalSuffix) {
			n++
		}
	}
	return n, nil
}

// IsEmpty reports whether the directory has no entries at all.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false, fmt.Errorf("failed to read enrollment directory: %w", err)
	}
	return len(entries) == 0, nil
}

// LastUpdated returns the newest modification time among the canonical files.
func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read enrollment directory: %w", err)
	}
	var latest time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), constants.CanonicalSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}
