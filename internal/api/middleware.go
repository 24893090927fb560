package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/campus-gateway/internal/session"
)

// SessionTokenHeader carries the token returned when the session was created
const SessionTokenHeader = "X-Session-Token"

// AuthMiddleware authorizes requests against the session addressed in the path
type AuthMiddleware struct {
	sessions session.Manager
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(sessions session.Manager) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireSession verifies the session token for the {id} path parameter.
// Browsers cannot set headers on WebSocket upgrades, so the token may also
// come from the "token" query parameter.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "session id is required")
			return
		}

		token := extractSessionToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "provide the "+SessionTokenHeader+" header")
			return
		}

		if err := m.sessions.Authorize(r.Context(), id, token); err != nil {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				respondError(w, http.StatusNotFound, "not_found", "session not found")
			case errors.Is(err, session.ErrInvalidToken):
				slog.Warn("invalid session token attempt",
					"session_id", id,
					"token_prefix", maskKey(token),
					"remote_addr", r.RemoteAddr,
				)
				respondError(w, http.StatusUnauthorized, "invalid_token", "the provided session token is not valid")
			default:
				slog.Error("failed to authorize session", "error", err, "session_id", id)
				respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			}
			return
		}

		ctx := ContextWithSessionID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractSessionToken reads the session token from headers or the query
func extractSessionToken(r *http.Request) string {
	if token := r.Header.Get(SessionTokenHeader); token != "" {
		return token
	}

	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// loggingMiddleware logs HTTP requests using slog and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), duration)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
