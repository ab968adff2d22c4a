package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

const (
	isoDateTime = "2006-01-02T15:04:05"
	isoDate     = "2006-01-02"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response in the {"detail": ...} shape the frontend reads.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}

// statusResponse is returned by delete and enroll endpoints
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// formatTime renders a timestamp as a server-local ISO datetime without zone, or nil.
// The database returns TIMESTAMPTZ values in its own session zone.
func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.In(time.Local).Format(isoDateTime)
	return &s
}

func formatTimeValue(t time.Time) *string {
	return formatTime(&t)
}

// parseInt64Param reads a numeric chi URL parameter.
func parseInt64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body, responding with 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

func getStudentRepository(r *http.Request, w http.ResponseWriter) database.StudentRepository {
	repo, err := database.GetStudentRepository(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "student storage not available")
		return nil
	}
	return repo
}

func getFacultyRepository(r *http.Request, w http.ResponseWriter) database.FacultyRepository {
	repo, err := database.GetFacultyRepository(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "faculty storage not available")
		return nil
	}
	return repo
}

func getClassRepository(r *http.Request, w http.ResponseWriter) database.ClassRepository {
	repo, err := database.GetClassRepository(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "class storage not available")
		return nil
	}
	return repo
}

func getSessionRepository(r *http.Request, w http.ResponseWriter) database.SessionRepository {
	repo, err := database.GetSessionRepository(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session storage not available")
		return nil
	}
	return repo
}

func getAttendanceRepository(r *http.Request, w http.ResponseWriter) database.AttendanceRepository {
	repo, err := database.GetAttendanceRepository(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "attendance storage not available")
		return nil
	}
	return repo
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}
