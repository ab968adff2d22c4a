package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

const (
	errClassNotFound           = "Class not found"
	errFacultyForClassNotFound = "Faculty not found for given faculty_id"
)

// ClassesHandler handles class endpoints
type ClassesHandler struct{}

// NewClassesHandler creates a new classes handler
func NewClassesHandler() *ClassesHandler {
	return &ClassesHandler{}
}

// ClassResponse represents a class in API responses
type ClassResponse struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	CourseCode *string `json:"course_code"`
	FacultyID  *string `json:"faculty_id"`
	CreatedAt  *string `json:"created_at"`
}

func toClassResponse(c *database.Class) ClassResponse {
	return ClassResponse{
		ID:         c.ID,
		Title:      c.Title,
		CourseCode: c.CourseCode,
		FacultyID:  c.FacultyID,
		CreatedAt:  formatTimeValue(c.CreatedAt),
	}
}

// List returns all classes
func (h *ClassesHandler) List(w http.ResponseWriter, r *http.Request) {
	repo := getClassRepository(r, w)
	if repo == nil {
		return
	}

	classes, err := repo.ListClasses(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}

	result := make([]ClassResponse, len(classes))
	for i := range classes {
		result[i] = toClassResponse(&classes[i])
	}
	respondJSON(w, http.StatusOK, result)
}

type createClassRequest struct {
	Title      string  `json:"title"`
	CourseCode *string `json:"course_code"`
	FacultyID  *string `json:"faculty_id"`
}

// Create adds a class. A given faculty_id must exist.
func (h *ClassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	repo := getClassRepository(r, w)
	if repo == nil {
		return
	}

	var req createClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	class, err := repo.CreateClass(r.Context(), database.Class{
		Title:      req.Title,
		CourseCode: req.CourseCode,
		FacultyID:  req.FacultyID,
	})
	if err != nil {
		if errors.Is(err, database.ErrInvalidReference) {
			respondError(w, http.StatusBadRequest, errFacultyForClassNotFound)
			return
		}
		logger.Error().Err(err).Msg("failed to create class")
		respondError(w, http.StatusInternalServerError, "failed to create class")
		return
	}

	respondJSON(w, http.StatusOK, toClassResponse(class))
}

type updateClassRequest struct {
	Title      *string `json:"title"`
	CourseCode *string `json:"course_code"`
	FacultyID  *string `json:"faculty_id"`
}

// Update changes a class. faculty_id "" clears the owner.
func (h *ClassesHandler) Update(w http.ResponseWriter, r *http.Request) {
	repo := getClassRepository(r, w)
	if repo == nil {
		return
	}

	id, ok := parseInt64Param(r, "class_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid class_id")
		return
	}

	var req updateClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	class, err := repo.UpdateClass(r.Context(), id, database.ClassUpdate{
		Title:      req.Title,
		CourseCode: req.CourseCode,
		FacultyID:  req.FacultyID,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, errClassNotFound)
		case errors.Is(err, database.ErrInvalidReference):
			respondError(w, http.StatusBadRequest, errFacultyForClassNotFound)
		default:
			respondError(w, http.StatusInternalServerError, "failed to update class")
		}
		return
	}

	respondJSON(w, http.StatusOK, toClassResponse(class))
}

// Delete removes a class with its sessions and attendance
func (h *ClassesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	repo := getClassRepository(r, w)
	if repo == nil {
		return
	}

	id, ok := parseInt64Param(r, "class_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid class_id")
		return
	}

	if err := repo.DeleteClass(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errClassNotFound)
			return
		}
		logger.Error().Err(err).Int64("class_id", id).Msg("failed to delete class")
		respondError(w, http.StatusInternalServerError, "failed to delete class")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Class %d and related sessions/attendance deleted", id),
	})
}
