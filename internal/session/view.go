package session

import (
	"github.com/terra-clan/campus-gateway/internal/eligibility"
	"github.com/terra-clan/campus-gateway/internal/models"
)

func buildView(s *models.Session) *models.SessionView {
	selection := s.Selection
	if selection == nil {
		selection = []models.University{}
	}

	return &models.SessionView{
		ID:             s.ID,
		Scores:         s.Scores,
		Selection:      selection,
		CompareVisible: eligibility.CompareVisible(selection),
		Query:          s.Query,
		Listings:       eligibility.Annotate(s.Scores, s.Catalog, selection),
		Draft:          draftView(s.Draft, s.Scores),
		ExpiresAt:      s.ExpiresAt,
	}
}

// draftView also echoes the scores shown read-only on the confirmation step
func draftView(d *models.ApplicationDraft, scores models.UserScores) *models.DraftView {
	if d == nil {
		return nil
	}
	return &models.DraftView{
		ID:          d.ID,
		University:  d.University,
		StudentName: d.StudentName,
		Email:       d.Email,
		Step:        d.Step,
		StepNumber:  d.Step.Number(),
		Submitting:  d.Submitting,
		GPA:         scores.GPA.String(),
		IELTS:       scores.IELTS.String(),
	}
}
