// Package application implements the two-step application flow:
// personal info, confirmation, then submission to the application endpoint.
package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/terra-clan/campus-gateway/internal/eligibility"
	"github.com/terra-clan/campus-gateway/internal/models"
	"github.com/terra-clan/campus-gateway/pkg/client"
)

// Messages shown to the user
const (
	SubmittingMessage      = "Submitting application..."
	ConnectionErrorMessage = "Connection error. Try again."
	DefaultSuccessMessage  = "Application submitted"
	ResultLostMessage      = "Could not record the application result. Try again."
)

// DefaultSubmitWindow bounds how long a draft stays marked as submitting.
// A mark older than the window is stale and no longer blocks the draft.
const DefaultSubmitWindow = 2 * time.Minute

// Common errors
var (
	ErrNoDraft            = errors.New("no application in progress")
	ErrNotEligible        = errors.New("scores do not meet the university requirements")
	ErrInvalidTransition  = errors.New("invalid application step transition")
	ErrSubmissionInFlight = errors.New("application submission already in progress")
	ErrIncompleteDraft    = errors.New("student name and email are required")
)

// Outcome classifies a finished submission
type Outcome string

const (
	OutcomeSubmitted      Outcome = "submitted"
	OutcomeRejected       Outcome = "rejected"
	OutcomeTransportError Outcome = "transport_error"
)

// Completion describes what happened to a submission and what the caller
// must do with the draft
type Completion struct {
	Outcome Outcome
	Status  int
	Message string
	// Discard is true when the draft must be dropped (successful submission)
	Discard bool
}

// Flow drives draft transitions. It holds no per-user state.
type Flow struct {
	validate     *validator.Validate
	submitWindow time.Duration
}

// FlowOption configures a Flow
type FlowOption func(*Flow)

// WithSubmitWindow sets how long a submitting mark blocks the draft
func WithSubmitWindow(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d > 0 {
			f.submitWindow = d
		}
	}
}

// NewFlow creates a flow; a nil validator gets a default one
func NewFlow(validate *validator.Validate, opts ...FlowOption) *Flow {
	if validate == nil {
		validate = validator.New()
	}
	f := &Flow{validate: validate, submitWindow: DefaultSubmitWindow}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InFlight reports whether the draft has a submission outstanding that is
// still inside the submit window
func (f *Flow) InFlight(draft *models.ApplicationDraft) bool {
	if draft == nil || !draft.Submitting {
		return false
	}
	return time.Since(draft.SubmittingSince) < f.submitWindow
}

// Release clears the submitting mark without classifying a response
func (f *Flow) Release(draft *models.ApplicationDraft) {
	if draft != nil {
		draft.Submitting = false
		draft.SubmittingSince = time.Time{}
	}
}

// Start opens a draft for an eligible university. An open draft is
// retargeted: its fields are kept and the step resets to personal info.
func (f *Flow) Start(current *models.ApplicationDraft, uni models.University, scores models.UserScores) (*models.ApplicationDraft, error) {
	if !eligibility.ComputeEligibility(scores, uni) {
		return nil, ErrNotEligible
	}

	draft := &models.ApplicationDraft{
		ID:         uuid.New().String(),
		University: uni,
		Step:       models.StepPersonalInfo,
		StartedAt:  time.Now().UTC(),
	}
	if current != nil {
		draft.StudentName = current.StudentName
		draft.Email = current.Email
	}
	return draft, nil
}

// Update edits personal info fields; only allowed on the personal info step
func (f *Flow) Update(draft *models.ApplicationDraft, req models.UpdateApplicationRequest) error {
	if draft == nil {
		return ErrNoDraft
	}
	if draft.Step != models.StepPersonalInfo {
		return fmt.Errorf("%w: fields are editable on %s only", ErrInvalidTransition, models.StepPersonalInfo)
	}
	if req.StudentName != nil {
		draft.StudentName = *req.StudentName
	}
	if req.Email != nil {
		draft.Email = *req.Email
	}
	return nil
}

// Next moves personal info to confirmation. Fields are not validated here.
func (f *Flow) Next(draft *models.ApplicationDraft) error {
	if draft == nil {
		return ErrNoDraft
	}
	if draft.Step != models.StepPersonalInfo {
		return fmt.Errorf("%w: next from %s", ErrInvalidTransition, draft.Step)
	}
	draft.Step = models.StepConfirmation
	return nil
}

// Back returns from confirmation to personal info, keeping the fields
func (f *Flow) Back(draft *models.ApplicationDraft) error {
	if draft == nil {
		return ErrNoDraft
	}
	if draft.Step != models.StepConfirmation {
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, draft.Step)
	}
	if f.InFlight(draft) {
		return ErrSubmissionInFlight
	}
	f.Release(draft)
	draft.Step = models.StepPersonalInfo
	return nil
}

// BeginSubmit marks the draft as submitting and builds the request body.
// It fails while another submission for the same draft is outstanding.
func (f *Flow) BeginSubmit(draft *models.ApplicationDraft, scores models.UserScores) (models.ApplyRequest, error) {
	if draft == nil {
		return models.ApplyRequest{}, ErrNoDraft
	}
	if draft.Step != models.StepConfirmation {
		return models.ApplyRequest{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, draft.Step)
	}
	if f.InFlight(draft) {
		return models.ApplyRequest{}, ErrSubmissionInFlight
	}

	draft.StudentName = strings.TrimSpace(draft.StudentName)
	draft.Email = strings.TrimSpace(draft.Email)
	if err := f.validate.Struct(draft); err != nil {
		return models.ApplyRequest{}, fmt.Errorf("%w: %v", ErrIncompleteDraft, err)
	}

	draft.Submitting = true
	draft.SubmittingSince = time.Now().UTC()
	return models.ApplyRequest{
		StudentName:  draft.StudentName,
		Email:        draft.Email,
		UniversityID: draft.University.ID,
		GPA:          scores.GPA,
		IELTS:        scores.IELTS,
	}, nil
}

// Complete clears the submitting mark and classifies the endpoint response
func (f *Flow) Complete(draft *models.ApplicationDraft, result *models.ApplyResult, err error) Completion {
	f.Release(draft)
	return Classify(result, err)
}

// Classify maps an endpoint response to an outcome and user message.
// Server-reported failures keep the server message verbatim; anything
// else that went wrong is a connection error.
func Classify(result *models.ApplyResult, err error) Completion {
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return Completion{
				Outcome: OutcomeRejected,
				Status:  apiErr.Status,
				Message: apiErr.Message,
			}
		}
		return Completion{
			Outcome: OutcomeTransportError,
			Message: ConnectionErrorMessage,
		}
	}

	msg := DefaultSuccessMessage
	status := 0
	if result != nil {
		status = result.Status
		if result.Message != "" {
			msg = result.Message
		}
	}
	return Completion{
		Outcome: OutcomeSubmitted,
		Status:  status,
		Message: msg,
		Discard: true,
	}
}
