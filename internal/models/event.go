package models

import "time"

// Event is an entry in the audit trail of account and template activity.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "user.signin", "template.deleted"
	Level     string    `json:"level"` // e.g., "info", "warn"
	Message   string    `json:"message"`
	UserID    *int64    `json:"user_id,omitempty"` // Nullable for anonymous activity
	CreatedAt time.Time `json:"created_at"`
}
