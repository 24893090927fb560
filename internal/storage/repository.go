package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// ErrSessionNotFound is returned when a session does not exist or expired
var ErrSessionNotFound = errors.New("session not found")

// SessionStore defines the interface for session persistence
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	// Expired returns ids of sessions past their expiry that the store
	// does not evict on its own
	Expired(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// AuditRecord is one submission attempt and its outcome
type AuditRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	DraftID      string    `json:"draft_id"`
	UniversityID string    `json:"university_id"`
	StudentName  string    `json:"student_name"`
	Email        string    `json:"email"`
	Outcome      string    `json:"outcome"`
	HTTPStatus   int       `json:"http_status"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditRepository records submission attempts
type AuditRepository interface {
	RecordSubmission(ctx context.Context, rec *AuditRecord) error
	ListSubmissions(ctx context.Context, sessionID string, limit int) ([]*AuditRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// NoopAudit discards audit records
type NoopAudit struct{}

func (NoopAudit) RecordSubmission(ctx context.Context, rec *AuditRecord) error { return nil }

func (NoopAudit) ListSubmissions(ctx context.Context, sessionID string, limit int) ([]*AuditRecord, error) {
	return nil, nil
}

func (NoopAudit) Ping(ctx context.Context) error { return nil }

func (NoopAudit) Close() error { return nil }
