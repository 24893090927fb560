package api

import (
	"net/http"
	"strconv"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// Session handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		respondSessionError(w, r, err, "create session")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateSessionResponse{
		ID:        sess.ID,
		Token:     sess.Token,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.View(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "get session")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := SessionIDFromContext(r.Context())
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		respondSessionError(w, r, err, "delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session deleted",
		"id":      id,
	})
}

func (s *Server) handleSetScores(w http.ResponseWriter, r *http.Request) {
	var req models.SetScoresRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := s.sessions.SetScores(r.Context(), SessionIDFromContext(r.Context()), models.UserScores{
		GPA:   req.GPA,
		IELTS: req.IELTS,
	})
	if err != nil {
		respondSessionError(w, r, err, "set scores")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Application handlers

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.View(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "get application")
		return
	}
	if view.Draft == nil {
		respondError(w, http.StatusNotFound, "no_application", "no application in progress")
		return
	}
	respondJSON(w, http.StatusOK, view.Draft)
}

func (s *Server) handleStartApplication(w http.ResponseWriter, r *http.Request) {
	var req models.StartApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UniversityID.IsZero() {
		respondError(w, http.StatusBadRequest, "validation_error", "universityId is required")
		return
	}

	draft, err := s.sessions.StartApplication(r.Context(), SessionIDFromContext(r.Context()), req.UniversityID)
	if err != nil {
		respondSessionError(w, r, err, "start application")
		return
	}
	respondJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := s.sessions.UpdateApplication(r.Context(), SessionIDFromContext(r.Context()), req)
	if err != nil {
		respondSessionError(w, r, err, "update application")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleCancelApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.CancelApplication(r.Context(), SessionIDFromContext(r.Context())); err != nil {
		respondSessionError(w, r, err, "cancel application")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "application cancelled",
	})
}

func (s *Server) handleNextStep(w http.ResponseWriter, r *http.Request) {
	draft, err := s.sessions.NextStep(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "advance application")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handlePreviousStep(w http.ResponseWriter, r *http.Request) {
	draft, err := s.sessions.PreviousStep(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "return to previous step")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

// handleSubmitApplication answers 200 once the endpoint responded or failed;
// the outcome field says which
func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sessions.SubmitApplication(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "submit application")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	records, err := s.sessions.Submissions(r.Context(), SessionIDFromContext(r.Context()), limit)
	if err != nil {
		respondSessionError(w, r, err, "list submissions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": records,
		"total":       len(records),
	})
}
