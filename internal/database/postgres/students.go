package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// StudentRepository provides PostgreSQL-backed student storage
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `enrollment_no, name, semester, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*database.Student, error) {
	var s database.Student
	if err := row.Scan(&s.EnrollmentNo, &s.Name, &s.Semester, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) GetStudent(ctx context.Context, enrollmentNo string) (*database.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE enrollment_no = $1`, enrollmentNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

func (r *StudentRepository) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY enrollment_no`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

func (r *StudentRepository) UpsertStudent(ctx context.Context, student database.Student) (*database.Student, bool, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`INSERT INTO students (enrollment_no, name, semester) VALUES ($1, $2, $3)
		 ON CONFLICT (enrollment_no) DO NOTHING
		 RETURNING `+studentColumns,
		student.EnrollmentNo, student.Name, student.Semester))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("upsert student: %w", err)
	}

	// Row already existed; return it unchanged.
	existing, err := r.GetStudent(ctx, student.EnrollmentNo)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("upsert student: %s vanished during insert", student.EnrollmentNo)
	}
	return existing, false, nil
}

func (r *StudentRepository) UpdateStudent(ctx context.Context, enrollmentNo string, update database.StudentUpdate) (*database.Student, error) {
	sets := []string{}
	args := []any{enrollmentNo}
	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Semester != nil {
		args = append(args, *update.Semester)
		sets = append(sets, fmt.Sprintf("semester = $%d", len(args)))
	}
	if len(sets) == 0 {
		s, err := r.GetStudent(ctx, enrollmentNo)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, database.ErrNotFound
		}
		return s, nil
	}

	s, err := scanStudent(r.pool.QueryRow(ctx,
		`UPDATE students SET `+strings.Join(sets, ", ")+` WHERE enrollment_no = $1 RETURNING `+studentColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	return s, nil
}

func (r *StudentRepository) DeleteStudent(ctx context.Context, enrollmentNo string) error {
	return r.pool.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE enrollment_no = $1`, enrollmentNo); err != nil {
			return fmt.Errorf("delete student attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM student_images WHERE enrollment_no = $1`, enrollmentNo); err != nil {
			return fmt.Errorf("delete student images: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM canonical_embeddings WHERE enrollment_no = $1`, enrollmentNo); err != nil {
			return fmt.Errorf("delete canonical embedding: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE enrollment_no = $1`, enrollmentNo)
		if err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return database.ErrNotFound
		}
		return nil
	})
}

func (r *StudentRepository) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

func (r *StudentRepository) AddImage(ctx context.Context, enrollmentNo, filePath string) (*database.StudentImage, error) {
	img := database.StudentImage{EnrollmentNo: enrollmentNo, FilePath: filePath}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO student_images (enrollment_no, file_path) VALUES ($1, $2) RETURNING id, captured_at`,
		enrollmentNo, filePath).Scan(&img.ID, &img.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("add student image: %w", mapError(err))
	}
	return &img, nil
}

func (r *StudentRepository) ListImages(ctx context.Context, enrollmentNo string) ([]database.StudentImage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, enrollment_no, file_path, captured_at FROM student_images
		 WHERE enrollment_no = $1 ORDER BY captured_at, id`, enrollmentNo)
	if err != nil {
		return nil, fmt.Errorf("list student images: %w", err)
	}
	defer rows.Close()

	var images []database.StudentImage
	for rows.Next() {
		var img database.StudentImage
		if err := rows.Scan(&img.ID, &img.EnrollmentNo, &img.FilePath, &img.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan student image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student images: %w", err)
	}
	return images, nil
}
