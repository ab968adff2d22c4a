package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

func classRequest(r *http.Request, id int64) *http.Request {
	return requestWithChiParams(r, map[string]string{"class_id": strconv.FormatInt(id, 10)})
}

func TestClassesHandler_List(t *testing.T) {
	env := setupTestEnv(t)
	env.store.AddClass(database.Class{Title: "Networks"})
	env.store.AddClass(database.Class{Title: "Compilers", CourseCode: strPtr("CS402")})
	handler := NewClassesHandler()

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/classes", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var classes []ClassResponse
	parseJSONResponse(t, recorder, &classes)
	if len(classes) != 2 || classes[0].Title != "Networks" || classes[1].Title != "Compilers" {
		t.Errorf("unexpected classes %+v", classes)
	}
}

func TestClassesHandler_List_Empty(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/classes", nil))

	if body := recorder.Body.String(); body != "[]\n" {
		t.Errorf("expected empty array, got %q", body)
	}
}

func TestClassesHandler_Create(t *testing.T) {
	env := setupTestEnv(t)
	env.store.AddFaculty(database.Faculty{FacultyID: "F1", Name: "Alice"})
	handler := NewClassesHandler()

	req := jsonRequest(t, http.MethodPost, "/classes", map[string]string{
		"title":       "Networks",
		"course_code": "CS301",
		"faculty_id":  "F1",
	})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var class ClassResponse
	parseJSONResponse(t, recorder, &class)
	if class.ID == 0 || class.Title != "Networks" || class.FacultyID == nil || *class.FacultyID != "F1" {
		t.Errorf("unexpected class %+v", class)
	}
}

func TestClassesHandler_Create_WithoutFaculty(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := jsonRequest(t, http.MethodPost, "/classes", map[string]string{"title": "Networks"})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var class ClassResponse
	parseJSONResponse(t, recorder, &class)
	if class.FacultyID != nil || class.CourseCode != nil {
		t.Errorf("expected no faculty or course code, got %+v", class)
	}
}

func TestClassesHandler_Create_UnknownFaculty(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := jsonRequest(t, http.MethodPost, "/classes", map[string]string{"title": "Networks", "faculty_id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "Faculty not found for given faculty_id")
}

func TestClassesHandler_Create_MissingTitle(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := jsonRequest(t, http.MethodPost, "/classes", map[string]string{"title": "  "})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "title is required")
}

func TestClassesHandler_Update(t *testing.T) {
	env := setupTestEnv(t)
	env.store.AddFaculty(database.Faculty{FacultyID: "F1", Name: "Alice"})
	id := env.store.AddClass(database.Class{Title: "Networks", FacultyID: strPtr("F1")})
	handler := NewClassesHandler()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		check      func(t *testing.T, c ClassResponse)
	}{
		{
			name:       "rename",
			body:       map[string]string{"title": "Computer Networks"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, c ClassResponse) {
				if c.Title != "Computer Networks" || c.FacultyID == nil {
					t.Errorf("unexpected class %+v", c)
				}
			},
		},
		{
			name:       "clear faculty",
			body:       map[string]string{"faculty_id": ""},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, c ClassResponse) {
				if c.FacultyID != nil {
					t.Errorf("expected faculty to be cleared, got %v", *c.FacultyID)
				}
			},
		},
		{
			name:       "unknown faculty",
			body:       map[string]string{"faculty_id": "nope"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := classRequest(jsonRequest(t, http.MethodPut, "/classes/x", tt.body), id)
			recorder := httptest.NewRecorder()
			handler.Update(recorder, req)

			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.check != nil {
				var class ClassResponse
				parseJSONResponse(t, recorder, &class)
				tt.check(t, class)
			}
		})
	}
}

func TestClassesHandler_Update_NotFound(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := classRequest(jsonRequest(t, http.MethodPut, "/classes/99", map[string]string{"title": "X"}), 99)
	recorder := httptest.NewRecorder()
	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Class not found")
}

func TestClassesHandler_Update_InvalidID(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := requestWithChiParams(jsonRequest(t, http.MethodPut, "/classes/abc", map[string]string{}),
		map[string]string{"class_id": "abc"})
	recorder := httptest.NewRecorder()
	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestClassesHandler_Delete(t *testing.T) {
	env := setupTestEnv(t)
	id := env.store.AddClass(database.Class{Title: "Networks"})
	sessionID := env.store.AddSession(database.Session{ClassID: id})
	env.store.AddAttendance(database.Attendance{EnrollmentNo: "CS001", SessionID: sessionID})
	handler := NewClassesHandler()

	req := classRequest(httptest.NewRequest(http.MethodDelete, "/classes/x", nil), id)
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp statusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Message != "Class "+strconv.FormatInt(id, 10)+" and related sessions/attendance deleted" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(env.store.AttendanceRows()) != 0 {
		t.Error("expected attendance to be removed with the class")
	}
}

func TestClassesHandler_Delete_NotFound(t *testing.T) {
	setupTestEnv(t)
	handler := NewClassesHandler()

	req := classRequest(httptest.NewRequest(http.MethodDelete, "/classes/99", nil), 99)
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Class not found")
}
