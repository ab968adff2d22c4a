package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WilliamHails/7th-sem-project/internal/attendance"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
	"github.com/WilliamHails/7th-sem-project/internal/search"
)

const errStudentNotFound = "Student not found"

// StudentsHandler handles student endpoints
type StudentsHandler struct {
	service *attendance.Service
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(svc *attendance.Service) *StudentsHandler {
	return &StudentsHandler{service: svc}
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	EnrollmentNo   string  `json:"enrollment_no"`
	Name           string  `json:"name"`
	Semester       string  `json:"semester"`
	CreatedAt      *string `json:"created_at"`
	FaceRegistered *bool   `json:"face_registered,omitempty"`
}

func toStudentResponse(s *database.Student) StudentResponse {
	return StudentResponse{
		EnrollmentNo: s.EnrollmentNo,
		Name:         s.Name,
		Semester:     s.Semester,
		CreatedAt:    formatTimeValue(s.CreatedAt),
	}
}

// List returns all students with a face_registered flag. ?q= filters by name or
// enrollment number, ignoring case and diacritics.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	repo := getStudentRepository(r, w)
	if repo == nil {
		return
	}

	students, err := repo.ListStudents(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list students")
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	query := r.URL.Query().Get("q")
	result := make([]StudentResponse, 0, len(students))
	for i := range students {
		s := &students[i]
		if !search.MatchesQuery(query, s.Name, s.EnrollmentNo) {
			continue
		}
		resp := toStudentResponse(s)
		registered, err := h.service.HasCanonical(r.Context(), s.EnrollmentNo)
		if err != nil {
			logger.Warn().Err(err).Str("enrollment_no", s.EnrollmentNo).Msg("could not check canonical embedding")
		}
		resp.FaceRegistered = &registered
		result = append(result, resp)
	}

	respondJSON(w, http.StatusOK, result)
}

// Get returns one student
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	repo := getStudentRepository(r, w)
	if repo == nil {
		return
	}

	student, err := repo.GetStudent(r.Context(), chi.URLParam(r, "enrollment_no"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, errStudentNotFound)
		return
	}

	respondJSON(w, http.StatusOK, toStudentResponse(student))
}

type updateStudentRequest struct {
	Name     *string `json:"name"`
	Semester *string `json:"semester"`
}

// Update changes a student's name and/or semester
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	repo := getStudentRepository(r, w)
	if repo == nil {
		return
	}

	var req updateStudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	student, err := repo.UpdateStudent(r.Context(), chi.URLParam(r, "enrollment_no"), database.StudentUpdate{
		Name:     req.Name,
		Semester: req.Semester,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errStudentNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update student")
		return
	}

	respondJSON(w, http.StatusOK, toStudentResponse(student))
}

// Delete removes a student with attendance, images and embeddings
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	enrollmentNo := chi.URLParam(r, "enrollment_no")

	if err := h.service.DeleteStudent(r.Context(), enrollmentNo); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errStudentNotFound)
			return
		}
		logger.Error().Err(err).Str("enrollment_no", sanitizeForLog(enrollmentNo)).Msg("failed to delete student")
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Student %s deleted successfully", enrollmentNo),
	})
}

// AttendanceRecordResponse is one attendance row of a student
type AttendanceRecordResponse struct {
	AttendanceID int64   `json:"attendance_id"`
	ClassID      int64   `json:"class_id"`
	ClassTitle   string  `json:"class_title"`
	SessionID    int64   `json:"session_id"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Confidence   float64 `json:"confidence"`
}

// Attendance lists a student's attendance with session and class
func (h *StudentsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	repo := getAttendanceRepository(r, w)
	if repo == nil {
		return
	}

	records, err := repo.ListByStudent(r.Context(), chi.URLParam(r, "enrollment_no"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	result := make([]AttendanceRecordResponse, len(records))
	for i, rec := range records {
		result[i] = AttendanceRecordResponse{
			AttendanceID: rec.AttendanceID,
			ClassID:      rec.ClassID,
			ClassTitle:   rec.ClassTitle,
			SessionID:    rec.SessionID,
			Date:         rec.Date.Format(isoDate),
			Time:         rec.Time,
			Confidence:   rec.Confidence,
		}
	}
	respondJSON(w, http.StatusOK, result)
}

// ClassSummaryResponse is a student's attendance in one class
type ClassSummaryResponse struct {
	ClassID       int64    `json:"class_id"`
	ClassTitle    string   `json:"class_title"`
	Attended      int      `json:"attended"`
	TotalSessions int      `json:"total_sessions"`
	Percentage    *float64 `json:"percentage"`
}

// Summary returns per-class attendance totals for a student
func (h *StudentsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	students := getStudentRepository(r, w)
	if students == nil {
		return
	}
	records := getAttendanceRepository(r, w)
	if records == nil {
		return
	}

	enrollmentNo := chi.URLParam(r, "enrollment_no")
	student, err := students.GetStudent(r.Context(), enrollmentNo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, errStudentNotFound)
		return
	}

	summary, err := records.StudentSummary(r.Context(), enrollmentNo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to summarize attendance")
		return
	}

	result := make([]ClassSummaryResponse, len(summary))
	for i, s := range summary {
		result[i] = ClassSummaryResponse{
			ClassID:       s.ClassID,
			ClassTitle:    s.ClassTitle,
			Attended:      s.Attended,
			TotalSessions: s.TotalSessions,
			Percentage:    s.Percentage(),
		}
	}
	respondJSON(w, http.StatusOK, result)
}
