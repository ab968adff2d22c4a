package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// SessionRepository provides PostgreSQL-backed class session storage
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `s.id, s.class_id, COALESCE(c.title, ''), s.session_date, s.start_time, s.end_time, s.is_active, s.created_at`

func scanSession(row interface{ Scan(...any) error }) (*database.Session, error) {
	var s database.Session
	if err := row.Scan(&s.ID, &s.ClassID, &s.ClassTitle, &s.SessionDate, &s.StartTime, &s.EndTime,
		&s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]database.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []database.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id int64) (*database.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions s LEFT JOIN classes c ON c.id = s.class_id WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) CreateSession(ctx context.Context, session database.Session) (*database.Session, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (class_id, session_date, start_time, end_time, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		session.ClassID, session.SessionDate.Format("2006-01-02"), session.StartTime, session.EndTime,
		session.IsActive).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", mapError(err))
	}
	return r.GetSession(ctx, id)
}

func (r *SessionRepository) ListActiveSessions(ctx context.Context, now time.Time) ([]database.Session, error) {
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions s LEFT JOIN classes c ON c.id = s.class_id
		 WHERE s.end_time >= $1 ORDER BY s.start_time, s.id`, now)
}

func (r *SessionRepository) ListSessionsByClass(ctx context.Context, classID int64) ([]database.Session, error) {
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions s LEFT JOIN classes c ON c.id = s.class_id
		 WHERE s.class_id = $1 ORDER BY s.start_time, s.id`, classID)
}

func (r *SessionRepository) GetFacultyForSession(ctx context.Context, sessionID int64) (*database.Faculty, error) {
	f, err := scanFaculty(r.pool.QueryRow(ctx,
		`SELECT f.faculty_id, f.name, f.email, f.phone, f.created_at
		 FROM sessions s
		 JOIN classes c ON c.id = s.class_id
		 JOIN faculty f ON f.faculty_id = c.faculty_id
		 WHERE s.id = $1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session faculty: %w", err)
	}
	return f, nil
}
