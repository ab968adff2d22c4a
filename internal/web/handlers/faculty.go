package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

const errFacultyNotFound = "Faculty not found"

// FacultyHandler handles faculty endpoints
type FacultyHandler struct{}

// NewFacultyHandler creates a new faculty handler
func NewFacultyHandler() *FacultyHandler {
	return &FacultyHandler{}
}

// FacultyResponse represents a faculty member in API responses
type FacultyResponse struct {
	FacultyID string  `json:"faculty_id"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	CreatedAt *string `json:"created_at"`
}

func toFacultyResponse(f *database.Faculty) FacultyResponse {
	return FacultyResponse{
		FacultyID: f.FacultyID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		CreatedAt: formatTimeValue(f.CreatedAt),
	}
}

// List returns all faculty
func (h *FacultyHandler) List(w http.ResponseWriter, r *http.Request) {
	repo := getFacultyRepository(r, w)
	if repo == nil {
		return
	}

	faculty, err := repo.ListFaculty(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list faculty")
		return
	}

	result := make([]FacultyResponse, len(faculty))
	for i := range faculty {
		result[i] = toFacultyResponse(&faculty[i])
	}
	respondJSON(w, http.StatusOK, result)
}

type createFacultyRequest struct {
	FacultyID string  `json:"faculty_id"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

// Create adds a faculty member
func (h *FacultyHandler) Create(w http.ResponseWriter, r *http.Request) {
	repo := getFacultyRepository(r, w)
	if repo == nil {
		return
	}

	var req createFacultyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FacultyID = strings.TrimSpace(req.FacultyID)
	if req.FacultyID == "" || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "faculty_id and name are required")
		return
	}

	faculty, err := repo.CreateFaculty(r.Context(), database.Faculty{
		FacultyID: req.FacultyID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			respondError(w, http.StatusBadRequest, "Faculty already exists")
			return
		}
		logger.Error().Err(err).Msg("failed to create faculty")
		respondError(w, http.StatusInternalServerError, "failed to create faculty")
		return
	}

	respondJSON(w, http.StatusOK, toFacultyResponse(faculty))
}

type updateFacultyRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Update changes a faculty member's contact details
func (h *FacultyHandler) Update(w http.ResponseWriter, r *http.Request) {
	repo := getFacultyRepository(r, w)
	if repo == nil {
		return
	}

	var req updateFacultyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	faculty, err := repo.UpdateFaculty(r.Context(), chi.URLParam(r, "faculty_id"), database.FacultyUpdate{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errFacultyNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update faculty")
		return
	}

	respondJSON(w, http.StatusOK, toFacultyResponse(faculty))
}

// Delete removes a faculty member with classes, sessions and attendance
func (h *FacultyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	repo := getFacultyRepository(r, w)
	if repo == nil {
		return
	}

	facultyID := chi.URLParam(r, "faculty_id")
	if err := repo.DeleteFaculty(r.Context(), facultyID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errFacultyNotFound)
			return
		}
		logger.Error().Err(err).Str("faculty_id", sanitizeForLog(facultyID)).Msg("failed to delete faculty")
		respondError(w, http.StatusInternalServerError, "failed to delete faculty")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Faculty %s and related classes/sessions/attendance deleted", facultyID),
	})
}

// FacultyClassResponse is the short class form used for dropdowns
type FacultyClassResponse struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	CourseCode *string `json:"course_code"`
}

// Classes lists the classes owned by a faculty member
func (h *FacultyHandler) Classes(w http.ResponseWriter, r *http.Request) {
	repo := getClassRepository(r, w)
	if repo == nil {
		return
	}

	classes, err := repo.ListClassesByFaculty(r.Context(), chi.URLParam(r, "faculty_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}

	result := make([]FacultyClassResponse, len(classes))
	for i, c := range classes {
		result[i] = FacultyClassResponse{ID: c.ID, Title: c.Title, CourseCode: c.CourseCode}
	}
	respondJSON(w, http.StatusOK, result)
}

// SessionStatsResponse is a session with its present count
type SessionStatsResponse struct {
	SessionID    int64   `json:"session_id"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	PresentCount int     `json:"present_count"`
}

// ClassStatsResponse is a class with per-session attendance
type ClassStatsResponse struct {
	ClassID      int64                  `json:"class_id"`
	Title        string                 `json:"title"`
	Sessions     []SessionStatsResponse `json:"sessions"`
	PresentTotal int                    `json:"present_total"`
	Percentage   *float64               `json:"percentage"`
}

// ClassesWithStats lists a faculty member's classes with present counts per session.
// The percentage divides the class's present total by the number of students.
func (h *FacultyHandler) ClassesWithStats(w http.ResponseWriter, r *http.Request) {
	classRepo := getClassRepository(r, w)
	if classRepo == nil {
		return
	}
	sessionRepo := getSessionRepository(r, w)
	if sessionRepo == nil {
		return
	}
	attendanceRepo := getAttendanceRepository(r, w)
	if attendanceRepo == nil {
		return
	}
	studentRepo := getStudentRepository(r, w)
	if studentRepo == nil {
		return
	}

	ctx := r.Context()
	classes, err := classRepo.ListClassesByFaculty(ctx, chi.URLParam(r, "faculty_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}
	totalStudents, err := studentRepo.CountStudents(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count students")
		return
	}

	result := make([]ClassStatsResponse, 0, len(classes))
	for _, c := range classes {
		sessions, err := sessionRepo.ListSessionsByClass(ctx, c.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list sessions")
			return
		}

		stats := ClassStatsResponse{ClassID: c.ID, Title: c.Title, Sessions: make([]SessionStatsResponse, 0, len(sessions))}
		for _, s := range sessions {
			count, err := attendanceRepo.CountBySession(ctx, s.ID)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "failed to count attendance")
				return
			}
			stats.Sessions = append(stats.Sessions, SessionStatsResponse{
				SessionID:    s.ID,
				StartTime:    formatTime(s.StartTime),
				EndTime:      formatTime(s.EndTime),
				PresentCount: count,
			})
			stats.PresentTotal += count
		}
		if totalStudents > 0 {
			p := database.RoundPercent(float64(stats.PresentTotal) / float64(totalStudents) * 100)
			stats.Percentage = &p
		}
		result = append(result, stats)
	}

	respondJSON(w, http.StatusOK, result)
}
