package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

func seedPredictions(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		log := &database.PredictionLog{
			AttemptedAt: time.Date(2025, 1, 10, 9, i, 0, 0, time.Local),
			ImagePath:   "predictions/p.jpg",
			Confidence:  0.5,
			Status:      "no_match",
		}
		if _, err := env.store.SaveRecognition(context.Background(), log, nil); err != nil {
			t.Fatalf("failed to seed prediction: %v", err)
		}
	}
}

func TestPredictionsHandler_List(t *testing.T) {
	env := setupTestEnv(t)
	seedPredictions(t, env, 3)
	handler := NewPredictionsHandler()

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/predictions", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var logs []PredictionResponse
	parseJSONResponse(t, recorder, &logs)
	if len(logs) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(logs))
	}
	if logs[0].AttemptedAt == nil || *logs[0].AttemptedAt != "2025-01-10T09:02:00" {
		t.Errorf("expected newest first, got %v", logs[0].AttemptedAt)
	}
	if logs[0].PredictedEnrollment != nil || logs[0].Status != "no_match" {
		t.Errorf("unexpected prediction %+v", logs[0])
	}
}

func TestPredictionsHandler_List_Limit(t *testing.T) {
	env := setupTestEnv(t)
	seedPredictions(t, env, 5)
	handler := NewPredictionsHandler()

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/predictions?limit=2", nil))

	var logs []PredictionResponse
	parseJSONResponse(t, recorder, &logs)
	if len(logs) != 2 {
		t.Errorf("expected 2 predictions, got %d", len(logs))
	}
}

func TestPredictionsHandler_List_InvalidLimit(t *testing.T) {
	setupTestEnv(t)
	handler := NewPredictionsHandler()

	for _, limit := range []string{"0", "-3", "ten"} {
		recorder := httptest.NewRecorder()
		handler.List(recorder, httptest.NewRequest(http.MethodGet, "/predictions?limit="+limit, nil))

		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "limit must be a positive integer")
	}
}
