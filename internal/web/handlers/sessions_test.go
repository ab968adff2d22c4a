package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

func TestParseSessionTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2025-01-10T09:00:00", time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local), false},
		{"2025-01-10T09:00", time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local), false},
		{"2025-01-10 09:00:30", time.Date(2025, 1, 10, 9, 0, 30, 0, time.Local), false},
		{" 2025-01-10 09:00 ", time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local), false},
		{"2025-01-10T09:00:00Z", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), false},
		{"10/01/2025 09:00", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSessionTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSessionTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseSessionTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func newTestSessionsHandler(now time.Time) *SessionsHandler {
	return &SessionsHandler{now: func() time.Time { return now }}
}

func TestSessionsHandler_Create(t *testing.T) {
	env := setupTestEnv(t)
	classID := env.store.AddClass(database.Class{Title: "Networks"})
	handler := newTestSessionsHandler(time.Date(2025, 1, 10, 8, 55, 0, 0, time.Local))

	q := url.Values{
		"class_id":   {strconv.FormatInt(classID, 10)},
		"start_time": {"2025-01-10T09:00:00"},
		"end_time":   {"2025-01-10T10:30:00"},
	}
	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest(http.MethodPost, "/sessions?"+q.Encode(), nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var session SessionResponse
	parseJSONResponse(t, recorder, &session)
	if session.ClassID != classID || !session.IsActive || session.SessionDate != "2025-01-10" {
		t.Errorf("unexpected session %+v", session)
	}
	if session.StartTime == nil || *session.StartTime != "2025-01-10T09:00:00" {
		t.Errorf("unexpected start_time %v", session.StartTime)
	}
	if session.EndTime == nil || *session.EndTime != "2025-01-10T10:30:00" {
		t.Errorf("unexpected end_time %v", session.EndTime)
	}
}

func TestSessionsHandler_Create_FormBody(t *testing.T) {
	env := setupTestEnv(t)
	classID := env.store.AddClass(database.Class{Title: "Networks"})
	handler := newTestSessionsHandler(time.Date(2025, 1, 10, 8, 55, 0, 0, time.Local))

	form := url.Values{
		"class_id":   {strconv.FormatInt(classID, 10)},
		"start_time": {"2025-01-10 09:00"},
		"end_time":   {"2025-01-10 10:00"},
	}
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
}

func TestSessionsHandler_Create_Errors(t *testing.T) {
	env := setupTestEnv(t)
	classID := strconv.FormatInt(env.store.AddClass(database.Class{Title: "Networks"}), 10)
	handler := newTestSessionsHandler(time.Now())

	tests := []struct {
		name       string
		params     url.Values
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unknown class",
			params:     url.Values{"class_id": {"999"}, "start_time": {"2025-01-10T09:00:00"}, "end_time": {"2025-01-10T10:00:00"}},
			wantStatus: http.StatusNotFound,
			wantDetail: "Class not found",
		},
		{
			name:       "unknown class wins over bad times",
			params:     url.Values{"class_id": {"999"}, "start_time": {"garbage"}},
			wantStatus: http.StatusNotFound,
			wantDetail: "Class not found",
		},
		{
			name:       "bad start time",
			params:     url.Values{"class_id": {classID}, "start_time": {"garbage"}, "end_time": {"2025-01-10T10:00:00"}},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid start_time or end_time format; use ISO datetime",
		},
		{
			name:       "missing end time",
			params:     url.Values{"class_id": {classID}, "start_time": {"2025-01-10T09:00:00"}},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid start_time or end_time format; use ISO datetime",
		},
		{
			name:       "non-numeric class",
			params:     url.Values{"class_id": {"abc"}},
			wantStatus: http.StatusBadRequest,
			wantDetail: "class_id must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Create(recorder, httptest.NewRequest(http.MethodPost, "/sessions?"+tt.params.Encode(), nil))

			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantDetail)
		})
	}
}

func TestSessionsHandler_Active(t *testing.T) {
	env := setupTestEnv(t)
	classID := env.store.AddClass(database.Class{Title: "Networks"})
	now := time.Date(2025, 1, 10, 9, 30, 0, 0, time.Local)
	ended := now.Add(-time.Hour)
	running := now.Add(time.Hour)
	env.store.AddSession(database.Session{ClassID: classID, EndTime: &ended})
	activeID := env.store.AddSession(database.Session{ClassID: classID, EndTime: &running, IsActive: true})
	handler := newTestSessionsHandler(now)

	recorder := httptest.NewRecorder()
	handler.Active(recorder, httptest.NewRequest(http.MethodGet, "/sessions/active", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var sessions []SessionResponse
	parseJSONResponse(t, recorder, &sessions)
	if len(sessions) != 1 || sessions[0].ID != activeID {
		t.Fatalf("expected only session %d, got %+v", activeID, sessions)
	}
	if sessions[0].ClassTitle == nil || *sessions[0].ClassTitle != "Networks" {
		t.Errorf("expected class title, got %v", sessions[0].ClassTitle)
	}
}

func TestSessionsHandler_FacultyContact(t *testing.T) {
	env := setupTestEnv(t)
	env.store.AddFaculty(database.Faculty{FacultyID: "F1", Name: "Alice", Email: strPtr("alice@uni.edu")})
	owned := env.store.AddSession(database.Session{
		ClassID: env.store.AddClass(database.Class{Title: "Networks", FacultyID: strPtr("F1")}),
	})
	orphan := env.store.AddSession(database.Session{
		ClassID: env.store.AddClass(database.Class{Title: "Unowned"}),
	})
	handler := NewSessionsHandler()

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/sessions/x/faculty", nil),
		map[string]string{"session_id": strconv.FormatInt(owned, 10)})
	recorder := httptest.NewRecorder()
	handler.FacultyContact(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var contact FacultyContactResponse
	parseJSONResponse(t, recorder, &contact)
	if contact.FacultyID != "F1" || contact.Email == nil || *contact.Email != "alice@uni.edu" {
		t.Errorf("unexpected contact %+v", contact)
	}

	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/sessions/x/faculty", nil),
		map[string]string{"session_id": strconv.FormatInt(orphan, 10)})
	recorder = httptest.NewRecorder()
	handler.FacultyContact(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Faculty not found for this session")
}

func TestSessionsHandler_Attendance(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.store.AddSession(database.Session{ClassID: env.store.AddClass(database.Class{Title: "Networks"})})
	env.store.AddAttendance(database.Attendance{
		EnrollmentNo:   "CS001",
		NameAtTime:     "Alice",
		SemesterAtTime: "3",
		SessionID:      sessionID,
		Date:           time.Date(2025, 1, 10, 0, 0, 0, 0, time.Local),
		Time:           "09:05:00",
		Confidence:     0.91,
	})
	handler := NewSessionsHandler()

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/sessions/x/attendance", nil),
		map[string]string{"session_id": strconv.FormatInt(sessionID, 10)})
	recorder := httptest.NewRecorder()
	handler.Attendance(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var rows []SessionAttendanceResponse
	parseJSONResponse(t, recorder, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Name != "Alice" || rows[0].Semester != "3" || rows[0].Date != "2025-01-10" || rows[0].Time != "09:05:00" {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestSessionsHandler_Attendance_NotFound(t *testing.T) {
	setupTestEnv(t)
	handler := NewSessionsHandler()

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/sessions/42/attendance", nil),
		map[string]string{"session_id": "42"})
	recorder := httptest.NewRecorder()
	handler.Attendance(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Session not found")
}
