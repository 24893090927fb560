package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// Catalog handlers: listings with eligibility, comparison selection and table

func (s *Server) handleListUniversities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.CatalogQuery{
		MaxFee:  q.Get("maxFee"),
		Country: q.Get("country"),
		Degree:  q.Get("degree"),
	}

	listings, err := s.sessions.Catalog(r.Context(), SessionIDFromContext(r.Context()), query)
	if err != nil {
		respondSessionError(w, r, err, "list universities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"universities": listings,
		"total":        len(listings),
	})
}

func (s *Server) handleToggleCompare(w http.ResponseWriter, r *http.Request) {
	universityID := chi.URLParam(r, "universityId")
	if universityID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "university id is required")
		return
	}

	resp, err := s.sessions.ToggleCompare(r.Context(), SessionIDFromContext(r.Context()), models.NewUniversityID(universityID))
	if err != nil {
		respondSessionError(w, r, err, "toggle comparison")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	table, err := s.sessions.Comparison(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, r, err, "build comparison")
		return
	}
	respondJSON(w, http.StatusOK, table)
}
