package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Session owns all per-user state: scores, comparison selection, the last
// catalog snapshot and at most one application draft.
type Session struct {
	ID        string            `json:"id"`
	Token     string            `json:"token"`
	Scores    UserScores        `json:"scores"`
	Selection []University      `json:"selection"`
	Catalog   []University      `json:"catalog"`
	Query     CatalogQuery      `json:"query"`
	Draft     *ApplicationDraft `json:"draft,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// IsExpired checks if the session TTL has elapsed
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch extends the session expiry by ttl from now
func (s *Session) Touch(ttl time.Duration) {
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// FindUniversity looks a university up in the catalog snapshot, then in the selection
func (s *Session) FindUniversity(id UniversityID) (University, bool) {
	for _, u := range s.Catalog {
		if u.ID.Matches(id) {
			return u, true
		}
	}
	for _, u := range s.Selection {
		if u.ID.Matches(id) {
			return u, true
		}
	}
	return University{}, false
}

// GenerateSessionToken creates a cryptographically random 48-char hex token
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SessionView is the state returned to the presentation layer
type SessionView struct {
	ID             string       `json:"id"`
	Scores         UserScores   `json:"scores"`
	Selection      []University `json:"selection"`
	CompareVisible bool         `json:"compare_visible"`
	Query          CatalogQuery `json:"query"`
	Listings       []Listing    `json:"listings"`
	Draft          *DraftView   `json:"draft,omitempty"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

// DraftView describes the open application modal
type DraftView struct {
	ID          string          `json:"id"`
	University  University      `json:"university"`
	StudentName string          `json:"studentName"`
	Email       string          `json:"email"`
	Step        ApplicationStep `json:"step"`
	StepNumber  int             `json:"step_number"`
	Submitting  bool            `json:"submitting"`
	GPA         string          `json:"gpa"`
	IELTS       string          `json:"ielts"`
}

// CreateSessionResponse is returned after creating a session
type CreateSessionResponse struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetScoresRequest updates the academic profile
type SetScoresRequest struct {
	GPA   Score `json:"gpa"`
	IELTS Score `json:"ielts"`
}
