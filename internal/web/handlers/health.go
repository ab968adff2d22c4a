package handlers

import (
	"net/http"

	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

// HealthHandler handles the health check endpoint
type HealthHandler struct {
	embedding HealthChecker
}

// NewHealthHandler creates a health handler. embedding may be nil.
func NewHealthHandler(embedding HealthChecker) *HealthHandler {
	return &HealthHandler{embedding: embedding}
}

// Get always answers {"status":"ok"} while the process is up. Dependency state
// is reported alongside and does not change the status code.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"database": database.IsInitialized(),
	}
	if h.embedding != nil {
		if err := h.embedding.Health(r.Context()); err != nil {
			logger.Debug().Err(err).Msg("embedding server health check failed")
			resp["embedding_server"] = false
		} else {
			resp["embedding_server"] = true
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
