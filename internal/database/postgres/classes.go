package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// ClassRepository provides PostgreSQL-backed class storage
type ClassRepository struct {
	pool *Pool
}

// NewClassRepository creates a new ClassRepository
func NewClassRepository(pool *Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

const classColumns = `id, title, course_code, faculty_id, created_at`

func scanClass(row interface{ Scan(...any) error }) (*database.Class, error) {
	var c database.Class
	if err := row.Scan(&c.ID, &c.Title, &c.CourseCode, &c.FacultyID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClassRepository) queryClasses(ctx context.Context, query string, args ...any) ([]database.Class, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []database.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

func (r *ClassRepository) GetClass(ctx context.Context, id int64) (*database.Class, error) {
	c, err := scanClass(r.pool.QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

func (r *ClassRepository) ListClasses(ctx context.Context) ([]database.Class, error) {
	return r.queryClasses(ctx, `SELECT `+classColumns+` FROM classes ORDER BY id`)
}

func (r *ClassRepository) ListClassesByFaculty(ctx context.Context, facultyID string) ([]database.Class, error) {
	return r.queryClasses(ctx, `SELECT `+classColumns+` FROM classes WHERE faculty_id = $1 ORDER BY id`, facultyID)
}

func (r *ClassRepository) CreateClass(ctx context.Context, class database.Class) (*database.Class, error) {
	facultyID := class.FacultyID
	if facultyID != nil && *facultyID == "" {
		facultyID = nil
	}
	c, err := scanClass(r.pool.QueryRow(ctx,
		`INSERT INTO classes (title, course_code, faculty_id) VALUES ($1, $2, $3) RETURNING `+classColumns,
		class.Title, class.CourseCode, facultyID))
	if err != nil {
		return nil, fmt.Errorf("create class: %w", mapError(err))
	}
	return c, nil
}

func (r *ClassRepository) UpdateClass(ctx context.Context, id int64, update database.ClassUpdate) (*database.Class, error) {
	sets := []string{}
	args := []any{id}
	if update.Title != nil {
		args = append(args, *update.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.CourseCode != nil {
		args = append(args, *update.CourseCode)
		sets = append(sets, fmt.Sprintf("course_code = $%d", len(args)))
	}
	if update.FacultyID != nil {
		if *update.FacultyID == "" {
			sets = append(sets, "faculty_id = NULL")
		} else {
			args = append(args, *update.FacultyID)
			sets = append(sets, fmt.Sprintf("faculty_id = $%d", len(args)))
		}
	}
	if len(sets) == 0 {
		c, err := r.GetClass(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, database.ErrNotFound
		}
		return c, nil
	}

	c, err := scanClass(r.pool.QueryRow(ctx,
		`UPDATE classes SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+classColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update class: %w", mapError(err))
	}
	return c, nil
}

func (r *ClassRepository) DeleteClass(ctx context.Context, id int64) error {
	return r.pool.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attendance WHERE session_id IN (SELECT id FROM sessions WHERE class_id = $1)`, id); err != nil {
			return fmt.Errorf("delete class attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE class_id = $1`, id); err != nil {
			return fmt.Errorf("delete class sessions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete class: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return database.ErrNotFound
		}
		return nil
	})
}
