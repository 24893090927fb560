package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/campus-gateway/internal/application"
	"github.com/terra-clan/campus-gateway/internal/eligibility"
	"github.com/terra-clan/campus-gateway/internal/models"
	"github.com/terra-clan/campus-gateway/internal/notify"
	"github.com/terra-clan/campus-gateway/internal/storage"
	"github.com/terra-clan/campus-gateway/pkg/client"
)

var fixtureCatalog = []models.University{
	{ID: models.NumericUniversityID(1), Name: "Northfield", Country: "Canada", MinGPA: 3.0, MinIELTS: 6.5, Tuition: 25000},
	{ID: models.NumericUniversityID(2), Name: "Lakeside", Country: "UK", MinGPA: 2.8, MinIELTS: 6.0, Tuition: 18000},
	{ID: models.NewUniversityID("x3"), Name: "Harbour City", Country: "Australia", MinGPA: 3.5, MinIELTS: 7.0, Tuition: 41000},
	{ID: models.NumericUniversityID(4), Name: "Valley State", Country: "USA", MinGPA: 2.0, MinIELTS: 5.0, Tuition: 12000},
}

type fakeProvider struct {
	universities []models.University
	err          error
	queries      []models.CatalogQuery
}

func (p *fakeProvider) ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error) {
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	return p.universities, nil
}

func (p *fakeProvider) HealthCheck(ctx context.Context) error {
	return p.err
}

// fakeSubmitter answers with result/err. When gate is set, each call
// signals on started and then waits for gate to be closed.
type fakeSubmitter struct {
	mu       sync.Mutex
	result   *models.ApplyResult
	err      error
	requests []models.ApplyRequest
	started  chan struct{}
	gate     chan struct{}
}

func (f *fakeSubmitter) SubmitApplication(ctx context.Context, req models.ApplyRequest) (*models.ApplyResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.gate != nil {
		f.started <- struct{}{}
		<-f.gate
	}
	return f.result, f.err
}

type fakeAudit struct {
	storage.NoopAudit
	mu      sync.Mutex
	records []*storage.AuditRecord
}

func (a *fakeAudit) RecordSubmission(ctx context.Context, rec *storage.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeAudit) ListSubmissions(ctx context.Context, sessionID string, limit int) ([]*storage.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*storage.AuditRecord
	for _, r := range a.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// flakyStore fails the next failGets reads and failSaves writes once armed
type flakyStore struct {
	*storage.MemoryStore
	mu        sync.Mutex
	failGets  int
	failSaves int
}

var errStoreDown = errors.New("i/o timeout")

func (f *flakyStore) arm(gets, saves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets, f.failSaves = gets, saves
}

func (f *flakyStore) Get(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	if f.failGets > 0 {
		f.failGets--
		f.mu.Unlock()
		return nil, errStoreDown
	}
	f.mu.Unlock()
	return f.MemoryStore.Get(ctx, id)
}

func (f *flakyStore) Save(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	if f.failSaves > 0 {
		f.failSaves--
		f.mu.Unlock()
		return errStoreDown
	}
	f.mu.Unlock()
	return f.MemoryStore.Save(ctx, s)
}

type harness struct {
	ctrl      *Controller
	store     *storage.MemoryStore
	hub       *notify.Hub
	provider  *fakeProvider
	submitter *fakeSubmitter
	audit     *fakeAudit
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     storage.NewMemoryStore(),
		hub:       notify.NewHub(16),
		provider:  &fakeProvider{universities: fixtureCatalog},
		submitter: &fakeSubmitter{result: &models.ApplyResult{Status: 201, Message: "Application received"}},
		audit:     &fakeAudit{},
	}
	h.ctrl = NewController(Config{TTL: time.Hour}, h.store, h.provider, h.submitter, h.hub, WithAudit(h.audit))
	return h
}

// newSessionAtConfirmation creates a session with a catalog snapshot and a
// filled draft for university 1 on the confirmation step
func (h *harness) newSessionAtConfirmation(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)

	_, err = h.ctrl.SetScores(ctx, s.ID, models.UserScores{GPA: models.NewScore(3.5), IELTS: models.NewScore(7.0)})
	require.NoError(t, err)
	_, err = h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{})
	require.NoError(t, err)

	_, err = h.ctrl.StartApplication(ctx, s.ID, models.NumericUniversityID(1))
	require.NoError(t, err)

	name, email := "Ada Lovelace", "ada@example.com"
	_, err = h.ctrl.UpdateApplication(ctx, s.ID, models.UpdateApplicationRequest{StudentName: &name, Email: &email})
	require.NoError(t, err)

	view, err := h.ctrl.NextStep(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.StepConfirmation, view.Step)

	return s.ID
}

func drain(sub *notify.Subscription) []models.Notification {
	var out []models.Notification
	for {
		select {
		case n := <-sub.C:
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestCreateAndAuthorize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Len(t, s.Token, 48)

	require.NoError(t, h.ctrl.Authorize(ctx, s.ID, s.Token))
	assert.ErrorIs(t, h.ctrl.Authorize(ctx, s.ID, "wrong"), ErrInvalidToken)
	assert.ErrorIs(t, h.ctrl.Authorize(ctx, s.ID, ""), ErrInvalidToken)
	assert.ErrorIs(t, h.ctrl.Authorize(ctx, "missing", s.Token), ErrSessionNotFound)

	view, err := h.ctrl.View(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Selection)
	assert.NotNil(t, view.Selection)
	assert.False(t, view.CompareVisible)
	assert.Nil(t, view.Draft)
}

func TestCatalog_AnnotatesAndStoresSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.SetScores(ctx, s.ID, models.UserScores{GPA: models.NewScore(3.2), IELTS: models.NewScore(6.5)})
	require.NoError(t, err)

	q := models.CatalogQuery{MaxFee: "30000", Country: "Canada", Degree: "Masters"}
	listings, err := h.ctrl.Catalog(ctx, s.ID, q)
	require.NoError(t, err)
	require.Len(t, listings, 4)
	assert.Equal(t, []models.CatalogQuery{q}, h.provider.queries)

	eligible := map[string]bool{}
	for _, l := range listings {
		eligible[l.University.ID.String()] = l.Eligible
		assert.Equal(t, models.PlaceholderImageURL, l.ImageURL)
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true, "x3": false, "4": true}, eligible)

	// lowering scores re-evaluates the stored snapshot
	view, err := h.ctrl.SetScores(ctx, s.ID, models.UserScores{})
	require.NoError(t, err)
	assert.Equal(t, q, view.Query)
	for _, l := range view.Listings {
		assert.False(t, l.Eligible, l.University.Name)
	}
}

func TestCatalog_ProviderFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.err = errors.New("boom")

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)

	_, err = h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{})
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	_, err = h.ctrl.Catalog(ctx, "missing", models.CatalogQuery{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestToggleCompare_LimitPublishesError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{})
	require.NoError(t, err)

	sub := h.hub.Subscribe(s.ID)
	defer sub.Close()

	ids := []models.UniversityID{
		models.NumericUniversityID(1),
		models.NumericUniversityID(2),
		models.NewUniversityID("x3"),
	}
	var resp *ToggleResponse
	for i, id := range ids {
		resp, err = h.ctrl.ToggleCompare(ctx, s.ID, id)
		require.NoError(t, err)
		assert.Equal(t, eligibility.OutcomeAdded, resp.Outcome)
		assert.Equal(t, i >= 1, resp.CompareVisible)
	}
	assert.Empty(t, drain(sub))

	resp, err = h.ctrl.ToggleCompare(ctx, s.ID, models.NumericUniversityID(4))
	require.NoError(t, err)
	assert.Equal(t, eligibility.OutcomeRejected, resp.Outcome)
	assert.Equal(t, eligibility.LimitReachedMessage, resp.Reason)
	assert.Len(t, resp.Selection, 3)

	notes := drain(sub)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyError, notes[0].Kind)
	assert.Equal(t, eligibility.LimitReachedMessage, notes[0].Message)

	// removing frees a slot
	resp, err = h.ctrl.ToggleCompare(ctx, s.ID, models.NumericUniversityID(2))
	require.NoError(t, err)
	assert.Equal(t, eligibility.OutcomeRemoved, resp.Outcome)

	table, err := h.ctrl.Comparison(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Count)
	assert.Equal(t, []string{"$25,000", "$41,000"}, table.Rows[2].Values)
}

func TestToggleCompare_UnknownUniversity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)

	_, err = h.ctrl.ToggleCompare(ctx, s.ID, models.NumericUniversityID(1))
	assert.ErrorIs(t, err, ErrUniversityNotFound)
}

func TestToggleCompare_SelectionSurvivesRefetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{})
	require.NoError(t, err)
	_, err = h.ctrl.ToggleCompare(ctx, s.ID, models.NumericUniversityID(1))
	require.NoError(t, err)

	// a narrower fetch drops university 1 from the snapshot, but it can
	// still be toggled off from the selection
	h.provider.universities = fixtureCatalog[1:2]
	listings, err := h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{Country: "UK"})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.False(t, listings[0].Selected)

	resp, err := h.ctrl.ToggleCompare(ctx, s.ID, models.NumericUniversityID(1))
	require.NoError(t, err)
	assert.Equal(t, eligibility.OutcomeRemoved, resp.Outcome)
	assert.Empty(t, resp.Selection)
}

func TestStartApplication(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Catalog(ctx, s.ID, models.CatalogQuery{})
	require.NoError(t, err)

	_, err = h.ctrl.StartApplication(ctx, s.ID, models.NumericUniversityID(1))
	assert.ErrorIs(t, err, application.ErrNotEligible)

	_, err = h.ctrl.StartApplication(ctx, s.ID, models.NumericUniversityID(99))
	assert.ErrorIs(t, err, ErrUniversityNotFound)

	_, err = h.ctrl.SetScores(ctx, s.ID, models.UserScores{GPA: models.NewScore(2.5), IELTS: models.NewScore(5.5)})
	require.NoError(t, err)

	draft, err := h.ctrl.StartApplication(ctx, s.ID, models.NumericUniversityID(4))
	require.NoError(t, err)
	assert.Equal(t, models.StepPersonalInfo, draft.Step)
	assert.Equal(t, 1, draft.StepNumber)
	assert.Equal(t, "2.5", draft.GPA)
	assert.Equal(t, "5.5", draft.IELTS)

	_, err = h.ctrl.PreviousStep(ctx, s.ID)
	assert.ErrorIs(t, err, application.ErrInvalidTransition)
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)

	sub := h.hub.Subscribe(id)
	defer sub.Close()

	resp, err := h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "Application received", resp.Message)
	assert.Nil(t, resp.Draft)
	assert.False(t, resp.Ignored)

	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, view.Draft)

	notes := drain(sub)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyLoading, notes[0].Kind)
	assert.Equal(t, application.SubmittingMessage, notes[0].Message)
	assert.Equal(t, models.NotifySuccess, notes[1].Kind)
	assert.Equal(t, "Application received", notes[1].Message)
	assert.Equal(t, notes[0].ID, notes[1].ID)

	require.Len(t, h.submitter.requests, 1)
	req := h.submitter.requests[0]
	assert.Equal(t, "Ada Lovelace", req.StudentName)
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, "1", req.UniversityID.String())
	assert.Equal(t, 3.5, req.GPA.Value())

	require.Len(t, h.audit.records, 1)
	assert.Equal(t, "submitted", h.audit.records[0].Outcome)
	assert.Equal(t, 201, h.audit.records[0].HTTPStatus)

	// the next draft starts empty
	draft, err := h.ctrl.StartApplication(ctx, id, models.NumericUniversityID(2))
	require.NoError(t, err)
	assert.Empty(t, draft.StudentName)
	assert.Empty(t, draft.Email)
}

func TestSubmit_TransportFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.result = nil
	h.submitter.err = client.ErrTransport

	sub := h.hub.Subscribe(id)
	defer sub.Close()

	resp, err := h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeTransportError, resp.Outcome)
	assert.Equal(t, application.ConnectionErrorMessage, resp.Message)
	require.NotNil(t, resp.Draft)
	assert.Equal(t, models.StepConfirmation, resp.Draft.Step)
	assert.False(t, resp.Draft.Submitting)
	assert.Equal(t, "Ada Lovelace", resp.Draft.StudentName)

	notes := drain(sub)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyError, notes[1].Kind)
	assert.Equal(t, application.ConnectionErrorMessage, notes[1].Message)

	// retry is allowed
	h.submitter.err = nil
	h.submitter.result = &models.ApplyResult{Status: 200, Message: "ok"}
	resp, err = h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)
}

func TestSubmit_ServerRejectionKeepsMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.result = nil
	h.submitter.err = &client.APIError{Status: 409, Message: "Already applied"}

	resp, err := h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeRejected, resp.Outcome)
	assert.Equal(t, 409, resp.Status)
	assert.Equal(t, "Already applied", resp.Message)
	require.NotNil(t, resp.Draft)
	assert.Equal(t, models.StepConfirmation, resp.Draft.Step)

	records, err := h.ctrl.Submissions(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rejected", records[0].Outcome)
	assert.Equal(t, "Already applied", records[0].Message)
}

func TestSubmit_IncompleteDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)

	_, err := h.ctrl.PreviousStep(ctx, id)
	require.NoError(t, err)
	blank := "   "
	_, err = h.ctrl.UpdateApplication(ctx, id, models.UpdateApplicationRequest{Email: &blank})
	require.NoError(t, err)
	_, err = h.ctrl.NextStep(ctx, id)
	require.NoError(t, err)

	_, err = h.ctrl.SubmitApplication(ctx, id)
	assert.ErrorIs(t, err, application.ErrIncompleteDraft)
	assert.Empty(t, h.submitter.requests)

	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.Draft.Submitting)
}

func TestSubmit_NonReentrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.started = make(chan struct{}, 1)
	h.submitter.gate = make(chan struct{})

	done := make(chan *SubmitResponse, 1)
	go func() {
		resp, err := h.ctrl.SubmitApplication(ctx, id)
		assert.NoError(t, err)
		done <- resp
	}()
	<-h.submitter.started

	// the session stays usable while the request is outstanding
	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Draft.Submitting)

	_, err = h.ctrl.SubmitApplication(ctx, id)
	assert.ErrorIs(t, err, application.ErrSubmissionInFlight)
	_, err = h.ctrl.PreviousStep(ctx, id)
	assert.ErrorIs(t, err, application.ErrSubmissionInFlight)

	close(h.submitter.gate)
	resp := <-done
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)
	assert.Len(t, h.submitter.requests, 1)
}

func TestSubmit_CancelledDraftIgnoresResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.started = make(chan struct{}, 1)
	h.submitter.gate = make(chan struct{})

	sub := h.hub.Subscribe(id)
	defer sub.Close()

	done := make(chan *SubmitResponse, 1)
	go func() {
		resp, err := h.ctrl.SubmitApplication(ctx, id)
		assert.NoError(t, err)
		done <- resp
	}()
	<-h.submitter.started

	require.NoError(t, h.ctrl.CancelApplication(ctx, id))
	close(h.submitter.gate)

	resp := <-done
	assert.True(t, resp.Ignored)
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)

	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, view.Draft)

	notes := drain(sub)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyLoading, notes[0].Kind)
}

func TestSubmit_ReplacedDraftIgnoresResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.started = make(chan struct{}, 1)
	h.submitter.gate = make(chan struct{})
	h.submitter.result = nil
	h.submitter.err = client.ErrTransport

	done := make(chan *SubmitResponse, 1)
	go func() {
		resp, err := h.ctrl.SubmitApplication(ctx, id)
		assert.NoError(t, err)
		done <- resp
	}()
	<-h.submitter.started

	replaced, err := h.ctrl.StartApplication(ctx, id, models.NumericUniversityID(2))
	require.NoError(t, err)
	close(h.submitter.gate)

	resp := <-done
	assert.True(t, resp.Ignored)

	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.Draft)
	assert.Equal(t, replaced.ID, view.Draft.ID)
	assert.Equal(t, models.StepPersonalInfo, view.Draft.Step)
	assert.False(t, view.Draft.Submitting)
	assert.Equal(t, "Ada Lovelace", view.Draft.StudentName)
}

func TestSubmit_DeletedSessionIgnoresResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)
	h.submitter.started = make(chan struct{}, 1)
	h.submitter.gate = make(chan struct{})

	done := make(chan *SubmitResponse, 1)
	go func() {
		resp, err := h.ctrl.SubmitApplication(ctx, id)
		assert.NoError(t, err)
		done <- resp
	}()
	<-h.submitter.started

	require.NoError(t, h.ctrl.Delete(ctx, id))
	close(h.submitter.gate)

	resp := <-done
	assert.True(t, resp.Ignored)
}

func TestDeleteClosesStreams(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)
	sub := h.hub.Subscribe(s.ID)

	require.NoError(t, h.ctrl.Delete(ctx, s.ID))
	_, open := <-sub.C
	assert.False(t, open)

	assert.ErrorIs(t, h.ctrl.Delete(ctx, s.ID), ErrSessionNotFound)
	assert.Equal(t, 0, h.ctrl.locks.len())
}

func TestExpired(t *testing.T) {
	store := storage.NewMemoryStore()
	hub := notify.NewHub(4)
	ctrl := NewController(Config{TTL: 10 * time.Millisecond}, store, &fakeProvider{}, &fakeSubmitter{}, hub)
	ctx := context.Background()

	s, err := ctrl.Create(ctx)
	require.NoError(t, err)

	orphan := hub.Subscribe("evicted-elsewhere")
	defer orphan.Close()
	live := hub.Subscribe(s.ID)
	defer live.Close()

	time.Sleep(30 * time.Millisecond)

	ids, err := ctrl.Expired(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s.ID, "evicted-elsewhere"}, ids)
}

// withFlakyStore swaps the harness controller for one whose store can be
// made to fail
func (h *harness) withFlakyStore(opts ...Option) *flakyStore {
	flaky := &flakyStore{MemoryStore: h.store}
	opts = append([]Option{WithAudit(h.audit)}, opts...)
	h.ctrl = NewController(Config{TTL: time.Hour}, flaky, h.provider, h.submitter, h.hub, opts...)
	return flaky
}

// submitWithStoreFailure submits, and arms the store failures once the
// endpoint call is outstanding
func (h *harness) submitWithStoreFailure(t *testing.T, flaky *flakyStore, id string, gets, saves int) error {
	t.Helper()
	h.submitter.started = make(chan struct{}, 1)
	h.submitter.gate = make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SubmitApplication(context.Background(), id)
		errs <- err
	}()
	<-h.submitter.started
	flaky.arm(gets, saves)
	close(h.submitter.gate)
	err := <-errs

	h.submitter.started = nil
	h.submitter.gate = nil
	return err
}

func TestSubmit_StoreReadFailureReleasesDraft(t *testing.T) {
	h := newHarness(t)
	flaky := h.withFlakyStore()
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)

	sub := h.hub.Subscribe(id)
	defer sub.Close()

	err := h.submitWithStoreFailure(t, flaky, id, 1, 0)
	assert.ErrorIs(t, err, errStoreDown)

	notes := drain(sub)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyLoading, notes[0].Kind)
	assert.Equal(t, models.NotifyError, notes[1].Kind)
	assert.Equal(t, notes[0].ID, notes[1].ID)
	assert.Equal(t, application.ResultLostMessage, notes[1].Message)

	view, err := h.ctrl.View(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.Draft)
	assert.False(t, view.Draft.Submitting)

	resp, err := h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)
}

func TestSubmit_StoreWriteFailureExpiresMark(t *testing.T) {
	h := newHarness(t)
	window := 50 * time.Millisecond
	flaky := h.withFlakyStore(WithFlow(application.NewFlow(nil, application.WithSubmitWindow(window))))
	ctx := context.Background()
	id := h.newSessionAtConfirmation(t)

	sub := h.hub.Subscribe(id)
	defer sub.Close()

	// both the result save and the release save fail
	err := h.submitWithStoreFailure(t, flaky, id, 0, 2)
	assert.ErrorIs(t, err, errStoreDown)

	notes := drain(sub)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyError, notes[1].Kind)
	assert.Equal(t, notes[0].ID, notes[1].ID)

	_, err = h.ctrl.SubmitApplication(ctx, id)
	assert.ErrorIs(t, err, application.ErrSubmissionInFlight)

	time.Sleep(2 * window)

	resp, err := h.ctrl.SubmitApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeSubmitted, resp.Outcome)
	assert.Len(t, h.submitter.requests, 2)
}

func TestSetScores_NonFiniteInputCountsAsZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s, err := h.ctrl.Create(ctx)
	require.NoError(t, err)

	var scores models.UserScores
	require.NoError(t, json.Unmarshal([]byte(`{"gpa":"NaN","ielts":"Infinity"}`), &scores))

	view, err := h.ctrl.SetScores(ctx, s.ID, scores)
	require.NoError(t, err)
	assert.False(t, view.Scores.GPA.IsSet())

	open := models.University{ID: models.NumericUniversityID(99), Name: "Open Door"}
	assert.True(t, eligibility.ComputeEligibility(view.Scores, open))
}
