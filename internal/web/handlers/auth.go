package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/logger"
	"github.com/WilliamHails/7th-sem-project/internal/web/middleware"
)

// AuthHandler handles admin login
type AuthHandler struct {
	tokens *middleware.TokenManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens *middleware.TokenManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

type loginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

// Login exchanges the admin password for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.tokens.Enabled() {
		respondError(w, http.StatusNotFound, "Admin authentication is not enabled")
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	token, expiresAt, err := h.tokens.Login(req.Password)
	if err != nil {
		if errors.Is(err, middleware.ErrInvalidCredentials) {
			logger.Warn().Str("remote", sanitizeForLog(r.RemoteAddr)).Msg("failed admin login")
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}

// Status reports whether admin auth is on and whether the request carries a valid token
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	enabled := h.tokens.Enabled()
	authenticated := !enabled
	if enabled {
		if token, ok := bearerToken(r); ok {
			_, err := h.tokens.Validate(token)
			authenticated = err == nil
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{
		"auth_enabled":  enabled,
		"authenticated": authenticated,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}
