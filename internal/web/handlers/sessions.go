package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

// sessionTimeLayouts are the accepted ISO datetime forms. Values without a zone are local time.
var sessionTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseSessionTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sessionTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid ISO datetime")
}

// SessionsHandler handles class session endpoints
type SessionsHandler struct {
	now func() time.Time
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler() *SessionsHandler {
	return &SessionsHandler{now: time.Now}
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID          int64   `json:"id"`
	ClassID     int64   `json:"class_id"`
	ClassTitle  *string `json:"class_title,omitempty"`
	SessionDate string  `json:"session_date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	IsActive    bool    `json:"is_active"`
}

func toSessionResponse(s *database.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		ClassID:     s.ClassID,
		SessionDate: s.SessionDate.Format(isoDate),
		StartTime:   formatTime(s.StartTime),
		EndTime:     formatTime(s.EndTime),
		IsActive:    s.IsActive,
	}
}

// Create starts a session for an existing class. Parameters come from the query
// string or a form body: class_id, start_time, end_time.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	classes := getClassRepository(r, w)
	if classes == nil {
		return
	}
	sessions := getSessionRepository(r, w)
	if sessions == nil {
		return
	}

	classID, err := strconv.ParseInt(r.FormValue("class_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "class_id must be an integer")
		return
	}

	class, err := classes.GetClass(r.Context(), classID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get class")
		return
	}
	if class == nil {
		respondError(w, http.StatusNotFound, errClassNotFound)
		return
	}

	start, errStart := parseSessionTime(r.FormValue("start_time"))
	end, errEnd := parseSessionTime(r.FormValue("end_time"))
	if errStart != nil || errEnd != nil {
		respondError(w, http.StatusBadRequest, "Invalid start_time or end_time format; use ISO datetime")
		return
	}

	session, err := sessions.CreateSession(r.Context(), database.Session{
		ClassID:     classID,
		SessionDate: h.now(),
		StartTime:   &start,
		EndTime:     &end,
		IsActive:    true,
	})
	if err != nil {
		if errors.Is(err, database.ErrInvalidReference) {
			respondError(w, http.StatusNotFound, errClassNotFound)
			return
		}
		logger.Error().Err(err).Int64("class_id", classID).Msg("failed to create session")
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// Active lists sessions that have not ended yet
func (h *SessionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	repo := getSessionRepository(r, w)
	if repo == nil {
		return
	}

	sessions, err := repo.ListActiveSessions(r.Context(), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	result := make([]SessionResponse, len(sessions))
	for i := range sessions {
		resp := toSessionResponse(&sessions[i])
		var title *string
		if sessions[i].ClassTitle != "" {
			t := sessions[i].ClassTitle
			title = &t
		}
		resp.ClassTitle = title
		result[i] = resp
	}
	respondJSON(w, http.StatusOK, result)
}

// FacultyContactResponse is the owner of a session's class
type FacultyContactResponse struct {
	FacultyID string  `json:"faculty_id"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

// FacultyContact returns contact details of the faculty owning the session's class
func (h *SessionsHandler) FacultyContact(w http.ResponseWriter, r *http.Request) {
	repo := getSessionRepository(r, w)
	if repo == nil {
		return
	}

	id, ok := parseInt64Param(r, "session_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	faculty, err := repo.GetFacultyForSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get faculty")
		return
	}
	if faculty == nil {
		respondError(w, http.StatusNotFound, "Faculty not found for this session")
		return
	}

	respondJSON(w, http.StatusOK, FacultyContactResponse{
		FacultyID: faculty.FacultyID,
		Name:      faculty.Name,
		Email:     faculty.Email,
		Phone:     faculty.Phone,
	})
}

// SessionAttendanceResponse is one student present in a session
type SessionAttendanceResponse struct {
	AttendanceID int64   `json:"attendance_id"`
	EnrollmentNo string  `json:"enrollment_no"`
	Name         string  `json:"name"`
	Semester     string  `json:"semester"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Confidence   float64 `json:"confidence"`
}

// Attendance lists the students marked present in a session
func (h *SessionsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	sessions := getSessionRepository(r, w)
	if sessions == nil {
		return
	}
	records := getAttendanceRepository(r, w)
	if records == nil {
		return
	}

	id, ok := parseInt64Param(r, "session_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	session, err := sessions.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	rows, err := records.ListBySession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	result := make([]SessionAttendanceResponse, len(rows))
	for i, a := range rows {
		result[i] = SessionAttendanceResponse{
			AttendanceID: a.ID,
			EnrollmentNo: a.EnrollmentNo,
			Name:         a.NameAtTime,
			Semester:     a.SemesterAtTime,
			Date:         a.Date.Format(isoDate),
			Time:         a.Time,
			Confidence:   a.Confidence,
		}
	}
	respondJSON(w, http.StatusOK, result)
}
