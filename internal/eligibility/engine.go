// Package eligibility holds the pure eligibility and comparison-selection
// rules. Nothing here keeps state; callers own the selection slice.
package eligibility

import (
	"github.com/terra-clan/campus-gateway/internal/models"
)

// MaxComparison is the comparison selection capacity
const MaxComparison = 3

// LimitReachedMessage is surfaced when a fourth university is toggled on
const LimitReachedMessage = "You can only compare up to 3 universities at a time."

// Outcome is the result of a comparison toggle
type Outcome string

const (
	OutcomeAdded    Outcome = "added"
	OutcomeRemoved  Outcome = "removed"
	OutcomeRejected Outcome = "rejected"
)

// ToggleResult carries the outcome and, for rejections, the reason
type ToggleResult struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// ComputeEligibility reports whether the scores meet both minimums.
// Unset scores compare as 0.
func ComputeEligibility(scores models.UserScores, uni models.University) bool {
	return scores.GPA.Value() >= uni.MinGPA.Float64() &&
		scores.IELTS.Value() >= uni.MinIELTS.Float64()
}

// Annotate enriches every catalog row with eligibility and selection state.
// Eligibility is recomputed on each call.
func Annotate(scores models.UserScores, catalog []models.University, selection []models.University) []models.Listing {
	listings := make([]models.Listing, 0, len(catalog))
	for _, uni := range catalog {
		listings = append(listings, models.Listing{
			University: uni,
			ImageURL:   uni.ImageOrPlaceholder(),
			Eligible:   ComputeEligibility(scores, uni),
			Selected:   Contains(selection, uni.ID),
		})
	}
	return listings
}

// Contains reports whether the selection holds the identifier
func Contains(selection []models.University, id models.UniversityID) bool {
	return indexOf(selection, id) >= 0
}

// ToggleComparison removes a selected university or appends an unselected
// one while capacity allows. The input slice is never modified.
func ToggleComparison(selection []models.University, uni models.University) ([]models.University, ToggleResult) {
	if i := indexOf(selection, uni.ID); i >= 0 {
		next := make([]models.University, 0, len(selection)-1)
		next = append(next, selection[:i]...)
		next = append(next, selection[i+1:]...)
		return next, ToggleResult{Outcome: OutcomeRemoved}
	}

	if len(selection) < MaxComparison {
		next := make([]models.University, 0, len(selection)+1)
		next = append(next, selection...)
		next = append(next, uni)
		return next, ToggleResult{Outcome: OutcomeAdded}
	}

	return selection, ToggleResult{Outcome: OutcomeRejected, Reason: LimitReachedMessage}
}

// CompareVisible reports whether the "compare now" affordance is shown
func CompareVisible(selection []models.University) bool {
	return len(selection) >= 2
}

func indexOf(selection []models.University, id models.UniversityID) int {
	for i, u := range selection {
		if u.ID.Matches(id) {
			return i
		}
	}
	return -1
}
