package models

import (
	"fmt"
	"strings"
	"time"
)

// Visibility controls whether a template appears in public listings.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility accepts PUBLIC or PRIVATE in any case. An empty string
// yields the default, PUBLIC.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(VisibilityPublic):
		return VisibilityPublic, nil
	case string(VisibilityPrivate):
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// Template is an owned, visibility-scoped content record.
type Template struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	OwnerID    *int64     `json:"owner_id"` // nil when created without a token
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsOwnedBy reports whether userID owns the template.
func (t Template) IsOwnedBy(userID int64) bool {
	return t.OwnerID != nil && *t.OwnerID == userID
}

// IsPublic reports whether the template is listed publicly.
func (t Template) IsPublic() bool {
	return t.Visibility == VisibilityPublic
}
