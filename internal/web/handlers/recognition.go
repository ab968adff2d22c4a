package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/WilliamHails/7th-sem-project/internal/attendance"
	"github.com/WilliamHails/7th-sem-project/internal/constants"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

// RecognitionHandler handles enrollment and recognition uploads
type RecognitionHandler struct {
	service *attendance.Service
}

// NewRecognitionHandler creates a new recognition handler
func NewRecognitionHandler(svc *attendance.Service) *RecognitionHandler {
	return &RecognitionHandler{service: svc}
}

// readUpload parses the multipart form and returns the "file" part.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form: file too large or invalid")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return nil, "", false
	}
	return data, header.Filename, true
}

// EnrollFaceResponse is returned by a successful enrollment
type EnrollFaceResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	EnrollmentNo   string `json:"enrollment_no"`
	FaceRegistered bool   `json:"face_registered"`
	FaceError      string `json:"face_error,omitempty"`
}

// Enroll registers a student with a reference face image
func (h *RecognitionHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.service.Enroll(r.Context(), attendance.EnrollRequest{
		EnrollmentNo: r.FormValue("enrollment_no"),
		Name:         r.FormValue("name"),
		Semester:     r.FormValue("semester"),
		Filename:     filename,
		Image:        data,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Err(err).Msg("enrollment failed")
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusOK, EnrollFaceResponse{
		Status:         "success",
		Message:        "Student enrolled successfully",
		EnrollmentNo:   result.Student.EnrollmentNo,
		FaceRegistered: result.FaceRegistered,
		FaceError:      result.FaceError,
	})
}

// MatchResponse is returned when the probe matched an enrolled student
type MatchResponse struct {
	Match            bool    `json:"match"`
	StudentID        string  `json:"student_id"`
	Score            float64 `json:"score"`
	EnrollmentNo     string  `json:"enrollment_no"`
	Logged           bool    `json:"logged"`
	AttendanceMarked bool    `json:"attendance_marked"`
}

// NoMatchResponse is returned when no student cleared the threshold
type NoMatchResponse struct {
	Match     bool    `json:"match"`
	StudentID *string `json:"student_id"`
	BestScore float64 `json:"best_score"`
	Logged    bool    `json:"logged"`
}

// sessionIDFromRequest reads session_id from the query string, falling back to
// the form. The query value wins when both are present.
func sessionIDFromRequest(r *http.Request) (*int64, error) {
	raw := ""
	query := r.URL.Query()
	for _, key := range []string{"session_id", "session_id_query"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			raw = v
			break
		}
	}
	if raw == "" && r.MultipartForm != nil {
		for _, key := range []string{"session_id", "session_id_form"} {
			if vs := r.MultipartForm.Value[key]; len(vs) > 0 && strings.TrimSpace(vs[0]) != "" {
				raw = strings.TrimSpace(vs[0])
				break
			}
		}
	}
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Recognize matches the uploaded face against enrolled students and marks
// attendance for the given session on a match
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := readUpload(w, r)
	if !ok {
		return
	}

	sessionID, err := sessionIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "session_id must be an integer")
		return
	}

	result, err := h.service.Recognize(r.Context(), attendance.RecognizeRequest{
		Image:     data,
		Filename:  filename,
		SessionID: sessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrNoEnrollments):
			respondError(w, http.StatusBadRequest, "No enrolled students yet")
		case errors.Is(err, attendance.ErrNoCanonical):
			respondError(w, http.StatusBadRequest, "No canonical embeddings found")
		case errors.Is(err, fingerprint.ErrNoFace), errors.Is(err, fingerprint.ErrDecode):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error().Err(err).Msg("recognition failed")
			respondError(w, http.StatusInternalServerError, "recognition failed")
		}
		return
	}

	if result.Match {
		respondJSON(w, http.StatusOK, MatchResponse{
			Match:            true,
			StudentID:        result.EnrollmentNo,
			Score:            result.Score,
			EnrollmentNo:     result.EnrollmentNo,
			Logged:           true,
			AttendanceMarked: result.AttendanceMarked,
		})
		return
	}

	respondJSON(w, http.StatusOK, NoMatchResponse{
		Match:     false,
		StudentID: nil,
		BestScore: result.Score,
		Logged:    true,
	})
}
