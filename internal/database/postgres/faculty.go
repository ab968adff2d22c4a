package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// FacultyRepository provides PostgreSQL-backed faculty storage
type FacultyRepository struct {
	pool *Pool
}

// NewFacultyRepository creates a new FacultyRepository
func NewFacultyRepository(pool *Pool) *FacultyRepository {
	return &FacultyRepository{pool: pool}
}

const facultyColumns = `faculty_id, name, email, phone, created_at`

func scanFaculty(row interface{ Scan(...any) error }) (*database.Faculty, error) {
	var f database.Faculty
	if err := row.Scan(&f.FacultyID, &f.Name, &f.Email, &f.Phone, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FacultyRepository) GetFaculty(ctx context.Context, facultyID string) (*database.Faculty, error) {
	f, err := scanFaculty(r.pool.QueryRow(ctx,
		`SELECT `+facultyColumns+` FROM faculty WHERE faculty_id = $1`, facultyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get faculty: %w", err)
	}
	return f, nil
}

func (r *FacultyRepository) ListFaculty(ctx context.Context) ([]database.Faculty, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+facultyColumns+` FROM faculty ORDER BY faculty_id`)
	if err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	defer rows.Close()

	var result []database.Faculty
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan faculty: %w", err)
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faculty: %w", err)
	}
	return result, nil
}

func (r *FacultyRepository) CreateFaculty(ctx context.Context, faculty database.Faculty) (*database.Faculty, error) {
	f, err := scanFaculty(r.pool.QueryRow(ctx,
		`INSERT INTO faculty (faculty_id, name, email, phone) VALUES ($1, $2, $3, $4)
		 RETURNING `+facultyColumns,
		faculty.FacultyID, faculty.Name, faculty.Email, faculty.Phone))
	if err != nil {
		return nil, fmt.Errorf("create faculty: %w", mapError(err))
	}
	return f, nil
}

func (r *FacultyRepository) UpdateFaculty(ctx context.Context, facultyID string, update database.FacultyUpdate) (*database.Faculty, error) {
	sets := []string{}
	args := []any{facultyID}
	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Email != nil {
		args = append(args, *update.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if update.Phone != nil {
		args = append(args, *update.Phone)
		sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
	}
	if len(sets) == 0 {
		f, err := r.GetFaculty(ctx, facultyID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, database.ErrNotFound
		}
		return f, nil
	}

	f, err := scanFaculty(r.pool.QueryRow(ctx,
		`UPDATE faculty SET `+strings.Join(sets, ", ")+` WHERE faculty_id = $1 RETURNING `+facultyColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update faculty: %w", err)
	}
	return f, nil
}

func (r *FacultyRepository) DeleteFaculty(ctx context.Context, facultyID string) error {
	return r.pool.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attendance WHERE session_id IN (
				SELECT s.id FROM sessions s JOIN classes c ON c.id = s.class_id WHERE c.faculty_id = $1)`,
			facultyID); err != nil {
			return fmt.Errorf("delete faculty attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE class_id IN (SELECT id FROM classes WHERE faculty_id = $1)`,
			facultyID); err != nil {
			return fmt.Errorf("delete faculty sessions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE faculty_id = $1`, facultyID); err != nil {
			return fmt.Errorf("delete faculty classes: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM faculty WHERE faculty_id = $1`, facultyID)
		if err != nil {
			return fmt.Errorf("delete faculty: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return database.ErrNotFound
		}
		return nil
	})
}
