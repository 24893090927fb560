// Package session owns all per-user state. Every operation takes the
// session lock, loads the session, applies the pure eligibility or
// application rules, saves, and only then publishes notifications.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/campus-gateway/internal/application"
	"github.com/terra-clan/campus-gateway/internal/catalog"
	"github.com/terra-clan/campus-gateway/internal/eligibility"
	"github.com/terra-clan/campus-gateway/internal/metrics"
	"github.com/terra-clan/campus-gateway/internal/models"
	"github.com/terra-clan/campus-gateway/internal/notify"
	"github.com/terra-clan/campus-gateway/internal/storage"
)

// Common errors
var (
	ErrSessionNotFound    = storage.ErrSessionNotFound
	ErrInvalidToken       = errors.New("invalid session token")
	ErrUniversityNotFound = errors.New("university not found in catalog or selection")
	ErrCatalogUnavailable = errors.New("catalog provider unavailable")
)

const (
	defaultTTL             = 2 * time.Hour
	defaultSubmissionLimit = 20
)

// Submitter posts applications to the application endpoint
type Submitter interface {
	SubmitApplication(ctx context.Context, req models.ApplyRequest) (*models.ApplyResult, error)
}

// Notifier is the notification hub as seen by the controller
type Notifier interface {
	notify.Publisher
	CloseSession(sessionID string)
	Sessions() []string
}

// Manager defines the session operations served over HTTP
type Manager interface {
	Create(ctx context.Context) (*models.Session, error)
	Authorize(ctx context.Context, id, token string) error
	View(ctx context.Context, id string) (*models.SessionView, error)
	Delete(ctx context.Context, id string) error
	SetScores(ctx context.Context, id string, scores models.UserScores) (*models.SessionView, error)
	Catalog(ctx context.Context, id string, q models.CatalogQuery) ([]models.Listing, error)
	ToggleCompare(ctx context.Context, id string, universityID models.UniversityID) (*ToggleResponse, error)
	Comparison(ctx context.Context, id string) (*eligibility.ComparisonTable, error)
	StartApplication(ctx context.Context, id string, universityID models.UniversityID) (*models.DraftView, error)
	UpdateApplication(ctx context.Context, id string, req models.UpdateApplicationRequest) (*models.DraftView, error)
	NextStep(ctx context.Context, id string) (*models.DraftView, error)
	PreviousStep(ctx context.Context, id string) (*models.DraftView, error)
	CancelApplication(ctx context.Context, id string) error
	SubmitApplication(ctx context.Context, id string) (*SubmitResponse, error)
	Submissions(ctx context.Context, id string, limit int) ([]*storage.AuditRecord, error)
	Expired(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// ToggleResponse is the selection after a comparison toggle
type ToggleResponse struct {
	Outcome        eligibility.Outcome `json:"outcome"`
	Reason         string              `json:"reason,omitempty"`
	Selection      []models.University `json:"selection"`
	CompareVisible bool                `json:"compare_visible"`
}

// SubmitResponse reports how a submission ended. Ignored is set when the
// draft was cancelled or replaced before the endpoint answered.
type SubmitResponse struct {
	Outcome application.Outcome `json:"outcome"`
	Status  int                 `json:"status,omitempty"`
	Message string              `json:"message"`
	Ignored bool                `json:"ignored,omitempty"`
	Draft   *models.DraftView   `json:"draft,omitempty"`
}

// Config holds controller settings
type Config struct {
	TTL time.Duration
}

// Option configures the controller
type Option func(*Controller)

// WithAudit records submission attempts
func WithAudit(repo storage.AuditRepository) Option {
	return func(c *Controller) {
		c.audit = repo
	}
}

// WithMetrics counts toggles, evaluations, submissions and notifications
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithFlow replaces the default application flow
func WithFlow(flow *application.Flow) Option {
	return func(c *Controller) {
		c.flow = flow
	}
}

// Controller implements Manager on top of a SessionStore
type Controller struct {
	store     storage.SessionStore
	provider  catalog.Provider
	submitter Submitter
	hub       Notifier
	flow      *application.Flow
	audit     storage.AuditRepository
	metrics   *metrics.Metrics
	ttl       time.Duration
	locks     *keyedMutex
}

// NewController creates a session controller
func NewController(cfg Config, store storage.SessionStore, provider catalog.Provider, submitter Submitter, hub Notifier, opts ...Option) *Controller {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &Controller{
		store:     store,
		provider:  provider,
		submitter: submitter,
		hub:       hub,
		audit:     storage.NoopAudit{},
		ttl:       ttl,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.flow == nil {
		c.flow = application.NewFlow(nil)
	}

	return c
}

// Create starts an empty session
func (c *Controller) Create(ctx context.Context) (*models.Session, error) {
	token, err := models.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	s := &models.Session{
		ID:        uuid.New().String(),
		Token:     token,
		Selection: []models.University{},
		Catalog:   []models.University{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	c.metrics.SessionCreated()

	slog.Info("session created", "session_id", s.ID, "expires_at", s.ExpiresAt)
	return s, nil
}

// Authorize checks the session token
func (c *Controller) Authorize(ctx context.Context, id, token string) error {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// View returns the session as shown to the presentation layer
func (c *Controller) View(ctx context.Context, id string) (*models.SessionView, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(s), nil
}

// Delete removes the session and closes its notification streams
func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	err := c.store.Delete(ctx, id)
	c.hub.CloseSession(id)
	if err != nil {
		return err
	}

	slog.Info("session deleted", "session_id", id)
	return nil
}

// SetScores replaces the academic profile. Listings are re-evaluated on the next read.
func (c *Controller) SetScores(ctx context.Context, id string, scores models.UserScores) (*models.SessionView, error) {
	s, err := c.update(ctx, id, func(s *models.Session) error {
		s.Scores = scores
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildView(s), nil
}

// Catalog fetches the filtered catalog, keeps it as the session snapshot and
// returns it annotated with eligibility and selection state
func (c *Controller) Catalog(ctx context.Context, id string, q models.CatalogQuery) ([]models.Listing, error) {
	if _, err := c.store.Get(ctx, id); err != nil {
		return nil, err
	}

	universities, err := c.provider.ListUniversities(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	var listings []models.Listing
	_, err = c.update(ctx, id, func(s *models.Session) error {
		s.Catalog = universities
		s.Query = q
		listings = eligibility.Annotate(s.Scores, s.Catalog, s.Selection)
		return nil
	})
	if err != nil {
		return nil, err
	}

	eligible := 0
	for _, l := range listings {
		if l.Eligible {
			eligible++
		}
	}
	c.metrics.CountEligibility(eligible, len(listings)-eligible)

	return listings, nil
}

// ToggleCompare adds or removes a university from the comparison selection.
// A rejected add leaves the selection unchanged and publishes an error
// notification before returning.
func (c *Controller) ToggleCompare(ctx context.Context, id string, universityID models.UniversityID) (*ToggleResponse, error) {
	var result eligibility.ToggleResult
	s, err := c.update(ctx, id, func(s *models.Session) error {
		uni, ok := s.FindUniversity(universityID)
		if !ok {
			return ErrUniversityNotFound
		}
		s.Selection, result = eligibility.ToggleComparison(s.Selection, uni)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.CountComparison(string(result.Outcome))
	if result.Outcome == eligibility.OutcomeRejected {
		c.publish(id, "", models.NotifyError, result.Reason)
	}

	return &ToggleResponse{
		Outcome:        result.Outcome,
		Reason:         result.Reason,
		Selection:      s.Selection,
		CompareVisible: eligibility.CompareVisible(s.Selection),
	}, nil
}

// Comparison builds the side-by-side table for the current selection
func (c *Controller) Comparison(ctx context.Context, id string) (*eligibility.ComparisonTable, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	table := eligibility.BuildComparison(s.Selection)
	return &table, nil
}

// StartApplication opens a draft for a university the student is eligible for
func (c *Controller) StartApplication(ctx context.Context, id string, universityID models.UniversityID) (*models.DraftView, error) {
	s, err := c.update(ctx, id, func(s *models.Session) error {
		uni, ok := s.FindUniversity(universityID)
		if !ok {
			return ErrUniversityNotFound
		}
		draft, err := c.flow.Start(s.Draft, uni, s.Scores)
		if err != nil {
			return err
		}
		s.Draft = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("application started",
		"session_id", id,
		"draft_id", s.Draft.ID,
		"university_id", s.Draft.University.ID.String(),
	)
	return draftView(s.Draft, s.Scores), nil
}

// UpdateApplication edits the personal info fields
func (c *Controller) UpdateApplication(ctx context.Context, id string, req models.UpdateApplicationRequest) (*models.DraftView, error) {
	return c.transition(ctx, id, func(d *models.ApplicationDraft) error {
		return c.flow.Update(d, req)
	})
}

// NextStep moves the draft to confirmation
func (c *Controller) NextStep(ctx context.Context, id string) (*models.DraftView, error) {
	return c.transition(ctx, id, c.flow.Next)
}

// PreviousStep moves the draft back to personal info
func (c *Controller) PreviousStep(ctx context.Context, id string) (*models.DraftView, error) {
	return c.transition(ctx, id, c.flow.Back)
}

// CancelApplication discards the draft from any step. An outstanding
// submission keeps running; its response is ignored.
func (c *Controller) CancelApplication(ctx context.Context, id string) error {
	_, err := c.update(ctx, id, func(s *models.Session) error {
		if s.Draft != nil && s.Draft.Submitting {
			slog.Info("application cancelled during submission", "session_id", id, "draft_id", s.Draft.ID)
		}
		s.Draft = nil
		return nil
	})
	return err
}

// SubmitApplication sends the confirmed draft. The session lock is released
// while the endpoint call is outstanding so the session stays usable.
func (c *Controller) SubmitApplication(ctx context.Context, id string) (*SubmitResponse, error) {
	var (
		req   models.ApplyRequest
		draft models.ApplicationDraft
	)
	_, err := c.update(ctx, id, func(s *models.Session) error {
		var err error
		req, err = c.flow.BeginSubmit(s.Draft, s.Scores)
		if err != nil {
			return err
		}
		draft = *s.Draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	notificationID := uuid.New().String()
	c.publish(id, notificationID, models.NotifyLoading, application.SubmittingMessage)

	// The response must be handled even if the caller goes away
	bg := context.WithoutCancel(ctx)
	result, submitErr := c.submitter.SubmitApplication(bg, req)
	completion := application.Classify(result, submitErr)

	c.metrics.CountSubmission(string(completion.Outcome))
	c.recordAudit(bg, id, draft, completion)

	if submitErr != nil {
		slog.Warn("application submission failed",
			"session_id", id,
			"draft_id", draft.ID,
			"outcome", completion.Outcome,
			"error", submitErr,
		)
	}

	return c.completeSubmission(bg, id, draft.ID, notificationID, result, submitErr)
}

func (c *Controller) completeSubmission(ctx context.Context, id, draftID, notificationID string, result *models.ApplyResult, submitErr error) (*SubmitResponse, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	s, err := c.store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return c.ignored(id, draftID, result, submitErr), nil
	}
	if err != nil {
		c.abandonSubmission(ctx, id, draftID, notificationID, err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.Draft == nil || s.Draft.ID != draftID {
		return c.ignored(id, draftID, result, submitErr), nil
	}

	completion := c.flow.Complete(s.Draft, result, submitErr)
	if completion.Discard {
		s.Draft = nil
	}

	s.Touch(c.ttl)
	if err := c.store.Save(ctx, s); err != nil {
		c.abandonSubmission(ctx, id, draftID, notificationID, err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	kind := models.NotifyError
	if completion.Outcome == application.OutcomeSubmitted {
		kind = models.NotifySuccess
		slog.Info("application submitted", "session_id", id, "draft_id", draftID, "status", completion.Status)
	}
	c.publish(id, notificationID, kind, completion.Message)

	resp := &SubmitResponse{
		Outcome: completion.Outcome,
		Status:  completion.Status,
		Message: completion.Message,
	}
	if s.Draft != nil {
		resp.Draft = draftView(s.Draft, s.Scores)
	}
	return resp, nil
}

// abandonSubmission resolves the loading notification when a submission
// result could not be stored, and tries once more to clear the submitting
// mark. If that also fails the mark expires after the flow's submit window.
// Must be called with the session lock held.
func (c *Controller) abandonSubmission(ctx context.Context, id, draftID, notificationID string, cause error) {
	slog.Error("failed to store submission result",
		"session_id", id,
		"draft_id", draftID,
		"error", cause,
	)
	c.publish(id, notificationID, models.NotifyError, application.ResultLostMessage)

	s, err := c.store.Get(ctx, id)
	if err != nil {
		slog.Warn("submitting mark left to expire", "session_id", id, "draft_id", draftID, "error", err)
		return
	}
	if s.Draft == nil || s.Draft.ID != draftID {
		return
	}
	c.flow.Release(s.Draft)
	if err := c.store.Save(ctx, s); err != nil {
		slog.Warn("submitting mark left to expire", "session_id", id, "draft_id", draftID, "error", err)
	}
}

func (c *Controller) ignored(id, draftID string, result *models.ApplyResult, submitErr error) *SubmitResponse {
	completion := application.Classify(result, submitErr)
	slog.Info("submission response ignored, draft no longer open",
		"session_id", id,
		"draft_id", draftID,
		"outcome", completion.Outcome,
	)
	return &SubmitResponse{
		Outcome: completion.Outcome,
		Status:  completion.Status,
		Message: completion.Message,
		Ignored: true,
	}
}

// Submissions lists recorded submission attempts for the session, newest first
func (c *Controller) Submissions(ctx context.Context, id string, limit int) ([]*storage.AuditRecord, error) {
	if _, err := c.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSubmissionLimit
	}

	records, err := c.audit.ListSubmissions(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*storage.AuditRecord{}
	}
	return records, nil
}

// Expired lists sessions to sweep: those the store reports as expired plus
// any with live notification streams whose session no longer exists
func (c *Controller) Expired(ctx context.Context) ([]string, error) {
	ids, err := c.store.Expired(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	for _, id := range c.hub.Sessions() {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := c.store.Get(ctx, id); errors.Is(err, ErrSessionNotFound) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// Ping checks the session store
func (c *Controller) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// update runs fn under the session lock and saves the result
func (c *Controller) update(ctx context.Context, id string, fn func(s *models.Session) error) (*models.Session, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	s.Touch(c.ttl)
	if err := c.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s, nil
}

func (c *Controller) transition(ctx context.Context, id string, fn func(d *models.ApplicationDraft) error) (*models.DraftView, error) {
	s, err := c.update(ctx, id, func(s *models.Session) error {
		return fn(s.Draft)
	})
	if err != nil {
		return nil, err
	}
	return draftView(s.Draft, s.Scores), nil
}

func (c *Controller) publish(sessionID, id string, kind models.NotificationKind, message string) {
	c.hub.Publish(models.Notification{
		ID:        id,
		SessionID: sessionID,
		Kind:      kind,
		Message:   message,
	})
	c.metrics.CountNotification(string(kind))
}

func (c *Controller) recordAudit(ctx context.Context, id string, draft models.ApplicationDraft, completion application.Completion) {
	rec := &storage.AuditRecord{
		SessionID:    id,
		DraftID:      draft.ID,
		UniversityID: draft.University.ID.String(),
		StudentName:  draft.StudentName,
		Email:        draft.Email,
		Outcome:      string(completion.Outcome),
		HTTPStatus:   completion.Status,
		Message:      completion.Message,
	}
	if err := c.audit.RecordSubmission(ctx, rec); err != nil {
		slog.Error("failed to record submission", "error", err, "session_id", id, "draft_id", draft.ID)
	}
}
