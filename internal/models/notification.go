package models

import "time"

// NotificationKind classifies a user-facing notification
type NotificationKind string

const (
	NotifyLoading NotificationKind = "loading"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is pushed to the presentation layer. A notification with an
// ID seen before replaces the earlier one.
type Notification struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}
