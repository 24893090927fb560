package models

import "time"

// ApplicationStep is the current step of the two-step application flow
type ApplicationStep string

const (
	StepPersonalInfo ApplicationStep = "personal_info"
	StepConfirmation ApplicationStep = "confirmation"
)

// Number returns the 1-based step index shown as "Step N of 2"
func (s ApplicationStep) Number() int {
	if s == StepConfirmation {
		return 2
	}
	return 1
}

// ApplicationDraft is the in-progress application for one university.
// Name and email are validated only when submitting.
type ApplicationDraft struct {
	ID              string          `json:"id"`
	University      University      `json:"university"`
	StudentName     string          `json:"studentName" validate:"required"`
	Email           string          `json:"email" validate:"required"`
	Step            ApplicationStep `json:"step"`
	Submitting      bool            `json:"submitting"`
	SubmittingSince time.Time       `json:"submitting_since,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
}

// ApplyRequest is the body posted to the application endpoint
type ApplyRequest struct {
	StudentName  string       `json:"studentName"`
	Email        string       `json:"email"`
	UniversityID UniversityID `json:"universityId"`
	GPA          Score        `json:"gpa"`
	IELTS        Score        `json:"ielts"`
}

// ApplyResult is the decoded application endpoint response
type ApplyResult struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// StartApplicationRequest starts a draft for a university
type StartApplicationRequest struct {
	UniversityID UniversityID `json:"universityId"`
}

// UpdateApplicationRequest edits personal info fields
type UpdateApplicationRequest struct {
	StudentName *string `json:"studentName,omitempty"`
	Email       *string `json:"email,omitempty"`
}
