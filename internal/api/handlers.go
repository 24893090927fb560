package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/campus-gateway/internal/application"
	"github.com/terra-clan/campus-gateway/internal/health"
	"github.com/terra-clan/campus-gateway/internal/session"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondSessionError maps controller errors to HTTP responses
func respondSessionError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, session.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid_token", "the provided session token is not valid")
	case errors.Is(err, session.ErrUniversityNotFound):
		respondError(w, http.StatusNotFound, "university_not_found", "university not found")
	case errors.Is(err, session.ErrCatalogUnavailable):
		slog.Warn("catalog provider failed", "error", err, "session_id", SessionIDFromContext(r.Context()))
		respondError(w, http.StatusBadGateway, "upstream_error", "catalog provider unavailable")
	case errors.Is(err, application.ErrNoDraft):
		respondError(w, http.StatusConflict, "no_application", err.Error())
	case errors.Is(err, application.ErrNotEligible):
		respondError(w, http.StatusUnprocessableEntity, "not_eligible", err.Error())
	case errors.Is(err, application.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, application.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, application.ErrIncompleteDraft):
		respondError(w, http.StatusUnprocessableEntity, "validation_error", application.ErrIncompleteDraft.Error())
	default:
		slog.Error("failed to "+action, "error", err, "session_id", SessionIDFromContext(r.Context()))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	if report.Status == health.StatusUnhealthy {
		slog.Warn("readiness check failed", "errors", report.Errors)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(apiResponse{
			Success: false,
			Data:    report,
			Error:   &apiError{Code: "not_ready", Message: "service not ready"},
		}); err != nil {
			slog.Error("failed to encode error response", "error", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, report)
}
