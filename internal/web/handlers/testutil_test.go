package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/WilliamHails/7th-sem-project/internal/attendance"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/database/mock"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
)

// stubEmbedder maps image content to a fixed embedding
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, imageData []byte) (*fingerprint.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	vec, ok := s.vectors[string(imageData)]
	if !ok {
		return nil, fingerprint.ErrNoFace
	}
	return &fingerprint.Embedding{Vector: vec, Model: "buffalo_l"}, nil
}

// testEnv is a mock database registered in the repository registry plus a service over it
type testEnv struct {
	store     *mock.MockStore
	canonical *mock.MockCanonicalStore
	embedder  *stubEmbedder
	service   *attendance.Service
	dataDir   string
}

// setupTestEnv registers in-memory repositories and builds an attendance service
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := mock.NewMockStore()
	store.Now = func() time.Time { return time.Date(2025, 1, 10, 8, 0, 0, 0, time.Local) }
	canonical := mock.NewMockCanonicalStore()
	store.Canonical = canonical

	database.ResetForTesting()
	database.RegisterPostgresBackend(store.Backend())
	database.RegisterCanonicalStore(canonical)
	t.Cleanup(database.ResetForTesting)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"alice-face": {1, 0, 0},
		"bob-face":   {0, 1, 0},
		"alice-cam":  {0.98, 0.199, 0},
		"stranger":   {0, 0, 1},
	}}

	dir := t.TempDir()
	svc := attendance.NewService(attendance.Deps{
		Students:   store,
		Sessions:   store,
		Attendance: store,
		Models:     store,
		Canonical:  canonical,
		Embedder:   embedder,
	}, attendance.Options{
		RawDir:         filepath.Join(dir, "raw"),
		PredictionsDir: filepath.Join(dir, "predictions"),
		Threshold:      0.65,
	})

	return &testEnv{store: store, canonical: canonical, embedder: embedder, service: svc, dataDir: dir}
}

// multipartRequest builds a multipart POST with the given fields and a "file" part
func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected detail
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["detail"] != expectedMessage {
		t.Errorf("expected detail '%s', got '%s'", expectedMessage, result["detail"])
	}
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
