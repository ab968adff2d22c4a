package database

import (
	"time"
)

// Student is an enrolled student, keyed by enrollment number
type Student struct {
	EnrollmentNo string
	Name         string
	Semester     string
	CreatedAt    time.Time
}

// StudentImage is a raw enrollment image saved for a student
type StudentImage struct {
	ID           int64
	EnrollmentNo string
	FilePath     string
	CapturedAt   time.Time
}

// StudentUpdate carries optional student fields; nil fields are left unchanged
type StudentUpdate struct {
	Name     *string
	Semester *string
}

// Faculty is a contact record for a class owner
type Faculty struct {
	FacultyID string
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
}

// FacultyUpdate carries optional faculty fields; nil fields are left unchanged
type FacultyUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// Class is a course offering, optionally owned by a faculty member
type Class struct {
	ID         int64
	Title      string
	CourseCode *string
	FacultyID  *string
	CreatedAt  time.Time
}

// ClassUpdate carries optional class fields. A FacultyID pointing at an empty
// string clears the owner.
type ClassUpdate struct {
	Title      *string
	CourseCode *string
	FacultyID  *string
}

// Session is a scheduled occurrence of a class
type Session struct {
	ID          int64
	ClassID     int64
	ClassTitle  string // populated by joined queries
	SessionDate time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// Attendance is a student's presence record for one session
type Attendance struct {
	ID             int64
	EnrollmentNo   string
	NameAtTime     string
	SemesterAtTime string
	Date           time.Time
	Time           string // HH:MM:SS
	Timestamp      time.Time
	Confidence     float64
	ImagePath      string
	ModelID        *int64
	SessionID      int64
}

// AttendanceRecord is an attendance row joined with its session and class
type AttendanceRecord struct {
	AttendanceID int64
	ClassID      int64
	ClassTitle   string
	SessionID    int64
	Date         time.Time
	Time         string
	Confidence   float64
}

// ClassAttendanceSummary is a student's attendance for one class
type ClassAttendanceSummary struct {
	ClassID       int64
	ClassTitle    string
	Attended      int
	TotalSessions int
}

// Percentage returns attended / total sessions * 100, or nil when the class has no sessions.
func (s ClassAttendanceSummary) Percentage() *float64 {
	if s.TotalSessions == 0 {
		return nil
	}
	p := RoundPercent(float64(s.Attended) / float64(s.TotalSessions) * 100)
	return &p
}

// PredictionLog records one recognition attempt, matched or not
type PredictionLog struct {
	ID                  int64
	AttemptedAt         time.Time
	ImagePath           string
	PredictedEnrollment *string
	PredictedName       *string
	Confidence          float64
	Status              string
	Note                *string
}

// CanonicalEmbedding is the stored reference face vector for a student
type CanonicalEmbedding struct {
	EnrollmentNo string
	Embedding    []float32
	Model        string
	UpdatedAt    time.Time
}
