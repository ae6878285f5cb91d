package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/sahara/auth"
)

// AuthHandler issues and verifies anonymous session tokens.
type AuthHandler struct {
	issuer *auth.Issuer
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(issuer *auth.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{issuer: issuer, logger: logger}
}

// Anonymous handles POST /api/v1/auth/anonymous.
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	tok, err := h.issuer.Issue()
	if err != nil {
		h.logger.Error("failed to issue session token", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	WriteJSON(w, http.StatusCreated, tok)
}

// Verify handles GET /api/v1/auth/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	subject, err := h.issuer.Verify(token)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"subject": subject, "valid": true})
}
