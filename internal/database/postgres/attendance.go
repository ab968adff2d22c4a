package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance and prediction log storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func (r *AttendanceRepository) SaveRecognition(ctx context.Context, log *database.PredictionLog, attendance *database.Attendance) (bool, error) {
	created := false
	err := r.pool.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO predictions_log
				(attempted_at, image_path, predicted_enrollment, predicted_name, confidence, status, note)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			log.AttemptedAt, log.ImagePath, log.PredictedEnrollment, log.PredictedName,
			log.Confidence, log.Status, log.Note).Scan(&log.ID)
		if err != nil {
			return fmt.Errorf("insert prediction log: %w", err)
		}

		if attendance == nil {
			return nil
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO attendance
				(enrollment_no, name_at_time, semester_at_time, date, time, timestamp,
				 confidence, image_path, model_id, session_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (enrollment_no, session_id) DO NOTHING
			 RETURNING id`,
			attendance.EnrollmentNo, attendance.NameAtTime, attendance.SemesterAtTime,
			attendance.Date.Format("2006-01-02"), attendance.Time, attendance.Timestamp,
			attendance.Confidence, attendance.ImagePath, attendance.ModelID, attendance.SessionID,
		).Scan(&attendance.ID)
		if errors.Is(err, sql.ErrNoRows) {
			// Already marked for this session.
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert attendance: %w", mapError(err))
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *AttendanceRepository) ListByStudent(ctx context.Context, enrollmentNo string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, c.id, c.title, s.id, a.date, a.time::text, COALESCE(a.confidence, 0)
		 FROM attendance a
		 JOIN sessions s ON s.id = a.session_id
		 JOIN classes c ON c.id = s.class_id
		 WHERE a.enrollment_no = $1
		 ORDER BY a.date, a.time, a.id`, enrollmentNo)
	if err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.AttendanceID, &rec.ClassID, &rec.ClassTitle, &rec.SessionID,
			&rec.Date, &rec.Time, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID int64) ([]database.Attendance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, enrollment_no, COALESCE(name_at_time, ''), COALESCE(semester_at_time, ''),
			date, time::text, timestamp, COALESCE(confidence, 0), COALESCE(image_path, ''), model_id, session_id
		 FROM attendance WHERE session_id = $1 ORDER BY timestamp, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	defer rows.Close()

	var result []database.Attendance
	for rows.Next() {
		var a database.Attendance
		if err := rows.Scan(&a.ID, &a.EnrollmentNo, &a.NameAtTime, &a.SemesterAtTime, &a.Date, &a.Time,
			&a.Timestamp, &a.Confidence, &a.ImagePath, &a.ModelID, &a.SessionID); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}

func (r *AttendanceRepository) CountBySession(ctx context.Context, sessionID int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count session attendance: %w", err)
	}
	return n, nil
}

func (r *AttendanceRepository) StudentSummary(ctx context.Context, enrollmentNo string) ([]database.ClassAttendanceSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title,
			COUNT(a.id) AS attended,
			COUNT(s.id) AS total_sessions
		 FROM classes c
		 JOIN sessions s ON s.class_id = c.id
		 LEFT JOIN attendance a ON a.session_id = s.id AND a.enrollment_no = $1
		 GROUP BY c.id, c.title
		 ORDER BY c.id`, enrollmentNo)
	if err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	defer rows.Close()

	var result []database.ClassAttendanceSummary
	for rows.Next() {
		var s database.ClassAttendanceSummary
		if err := rows.Scan(&s.ClassID, &s.ClassTitle, &s.Attended, &s.TotalSessions); err != nil {
			return nil, fmt.Errorf("scan attendance summary: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance summary: %w", err)
	}
	return result, nil
}

func (r *AttendanceRepository) ListPredictions(ctx context.Context, limit int) ([]database.PredictionLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempted_at, COALESCE(image_path, ''), predicted_enrollment, predicted_name,
			COALESCE(confidence, 0), status, note
		 FROM predictions_log ORDER BY attempted_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var result []database.PredictionLog
	for rows.Next() {
		var p database.PredictionLog
		if err := rows.Scan(&p.ID, &p.AttemptedAt, &p.ImagePath, &p.PredictedEnrollment, &p.PredictedName,
			&p.Confidence, &p.Status, &p.Note); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return result, nil
}
