package handlers

import (
	"net/http"
	"strconv"

	"github.com/WilliamHails/7th-sem-project/internal/constants"
)

// PredictionsHandler exposes the recognition audit log
type PredictionsHandler struct{}

// NewPredictionsHandler creates a new predictions handler
func NewPredictionsHandler() *PredictionsHandler {
	return &PredictionsHandler{}
}

// PredictionResponse is one recognition attempt
type PredictionResponse struct {
	ID                  int64   `json:"id"`
	AttemptedAt         *string `json:"attempted_at"`
	ImagePath           string  `json:"image_path"`
	PredictedEnrollment *string `json:"predicted_enrollment"`
	PredictedName       *string `json:"predicted_name"`
	Confidence          float64 `json:"confidence"`
	Status              string  `json:"status"`
	Note                *string `json:"note"`
}

// List returns the most recent attempts first, ?limit= caps the count
func (h *PredictionsHandler) List(w http.ResponseWriter, r *http.Request) {
	repo := getAttendanceRepository(r, w)
	if repo == nil {
		return
	}

	limit := constants.DefaultPredictionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.MaxPredictionLimit)
	}

	logs, err := repo.ListPredictions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	result := make([]PredictionResponse, len(logs))
	for i, l := range logs {
		result[i] = PredictionResponse{
			ID:                  l.ID,
			AttemptedAt:         formatTimeValue(l.AttemptedAt),
			ImagePath:           l.ImagePath,
			PredictedEnrollment: l.PredictedEnrollment,
			PredictedName:       l.PredictedName,
			Confidence:          l.Confidence,
			Status:              l.Status,
			Note:                l.Note,
		}
	}
	respondJSON(w, http.StatusOK, result)
}
