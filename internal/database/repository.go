package database

import (
	"context"
	"time"
)

// StudentRepository provides access to students and their raw images
type StudentRepository interface {
	// GetStudent returns nil if the student does not exist
	GetStudent(ctx context.Context, enrollmentNo string) (*Student, error)
	// ListStudents returns all students ordered by enrollment number
	ListStudents(ctx context.Context) ([]Student, error)
	// UpsertStudent inserts the student when missing and leaves an existing row untouched.
	// Returns the stored row and whether it was created.
	UpsertStudent(ctx context.Context, student Student) (*Student, bool, error)
	// UpdateStudent applies non-nil fields, ErrNotFound if missing
	UpdateStudent(ctx context.Context, enrollmentNo string, update StudentUpdate) (*Student, error)
	// DeleteStudent removes the student with its attendance, images and canonical embedding
	// in one transaction, ErrNotFound if missing
	DeleteStudent(ctx context.Context, enrollmentNo string) error
	CountStudents(ctx context.Context) (int, error)
	AddImage(ctx context.Context, enrollmentNo, filePath string) (*StudentImage, error)
	ListImages(ctx context.Context, enrollmentNo string) ([]StudentImage, error)
}

// FacultyRepository provides access to faculty contact records
type FacultyRepository interface {
	// GetFaculty returns nil if the faculty member does not exist
	GetFaculty(ctx context.Context, facultyID string) (*Faculty, error)
	ListFaculty(ctx context.Context) ([]Faculty, error)
	// CreateFaculty returns ErrAlreadyExists when the id is taken
	CreateFaculty(ctx context.Context, faculty Faculty) (*Faculty, error)
	UpdateFaculty(ctx context.Context, facultyID string, update FacultyUpdate) (*Faculty, error)
	// DeleteFaculty removes the faculty member with its classes, their sessions and attendance
	DeleteFaculty(ctx context.Context, facultyID string) error
}

// ClassRepository provides access to classes
type ClassRepository interface {
	// GetClass returns nil if the class does not exist
	GetClass(ctx context.Context, id int64) (*Class, error)
	ListClasses(ctx context.Context) ([]Class, error)
	ListClassesByFaculty(ctx context.Context, facultyID string) ([]Class, error)
	// CreateClass returns ErrInvalidReference when the faculty does not exist
	CreateClass(ctx context.Context, class Class) (*Class, error)
	UpdateClass(ctx context.Context, id int64, update ClassUpdate) (*Class, error)
	// DeleteClass removes the class with its sessions and their attendance
	DeleteClass(ctx context.Context, id int64) error
}

// SessionRepository provides access to class sessions
type SessionRepository interface {
	// GetSession returns nil if the session does not exist
	GetSession(ctx context.Context, id int64) (*Session, error)
	CreateSession(ctx context.Context, session Session) (*Session, error)
	// ListActiveSessions returns sessions whose end time is not before now, with class titles
	ListActiveSessions(ctx context.Context, now time.Time) ([]Session, error)
	ListSessionsByClass(ctx context.Context, classID int64) ([]Session, error)
	// GetFacultyForSession returns nil when the session, its class owner or the faculty row is missing
	GetFacultyForSession(ctx context.Context, sessionID int64) (*Faculty, error)
}

// AttendanceRepository records recognition attempts and attendance
type AttendanceRepository interface {
	// SaveRecognition writes the prediction log and, when attendance is non-nil, the
	// attendance row in one transaction. An existing row for the same student and
	// session is kept; the returned bool reports whether a new row was written.
	SaveRecognition(ctx context.Context, log *PredictionLog, attendance *Attendance) (bool, error)
	ListByStudent(ctx context.Context, enrollmentNo string) ([]AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID int64) ([]Attendance, error)
	CountBySession(ctx context.Context, sessionID int64) (int, error)
	StudentSummary(ctx context.Context, enrollmentNo string) ([]ClassAttendanceSummary, error)
	// ListPredictions returns the most recent attempts first
	ListPredictions(ctx context.Context, limit int) ([]PredictionLog, error)
}

// ModelRepository registers embedding models in model_info
type ModelRepository interface {
	// EnsureModel returns the id of the model row, inserting it if needed
	EnsureModel(ctx context.Context, modelType, filePath string) (int64, error)
}

// CanonicalStore holds one canonical embedding per student
type CanonicalStore interface {
	// Save creates or overwrites the canonical embedding
	Save(ctx context.Context, enrollmentNo string, embedding []float32, model string) error
	// Load returns nil if no embedding is stored
	Load(ctx context.Context, enrollmentNo string) ([]float32, error)
	Has(ctx context.Context, enrollmentNo string) (bool, error)
	// Delete is a no-op when nothing is stored
	Delete(ctx context.Context, enrollmentNo string) error
	// List returns every canonical embedding ordered by enrollment number
	List(ctx context.Context) ([]CanonicalEmbedding, error)
	Count(ctx context.Context) (int, error)
	// IsEmpty reports whether the store holds nothing at all
	IsEmpty(ctx context.Context) (bool, error)
	// LastUpdated returns the newest UpdatedAt over all embeddings, zero when empty
	LastUpdated(ctx context.Context) (time.Time, error)
}
