package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avikal/resumeai/internal/llm"
	"github.com/avikal/resumeai/internal/repository"
	"github.com/avikal/resumeai/internal/service/analyze"
	"github.com/avikal/resumeai/internal/service/auth"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service-layer failures to HTTP responses. Raw
// model output and parser errors never reach the client.
func writeServiceError(w http.ResponseWriter, err error) {
	var gateErr *analyze.GateError
	if errors.As(err, &gateErr) {
		writeError(w, http.StatusBadRequest, gateErr.Reason)
		return
	}
	var quotaErr *analyze.QuotaError
	if errors.As(err, &quotaErr) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":       "Usage limit reached",
			"usage_count": quotaErr.Used,
			"usage_limit": quotaErr.Limit,
		})
		return
	}
	switch {
	case errors.Is(err, auth.ErrEmailInvalid):
		writeError(w, http.StatusBadRequest, "valid email is required")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, analyze.ErrModelUnavailable):
		writeError(w, http.StatusBadGateway, "Analysis is temporarily unavailable, please try again later")
	case errors.Is(err, llm.ErrMalformedOutput):
		writeError(w, http.StatusInternalServerError, "Analysis failed")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
