package services

import (
	"context"
	"time"

	"github.com/isdelr/stencil-be/internal/models"
)

// UserStore is the persistence capability needed by UserService.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// TemplateStore is the persistence capability needed by TemplateService.
type TemplateStore interface {
	Create(ctx context.Context, tmpl *models.Template) error
	GetByID(ctx context.Context, id int64) (models.Template, error)
	ListByVisibility(ctx context.Context, visibility models.Visibility, skip, limit int) ([]models.Template, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Template, error)
	Modify(ctx context.Context, id int64, mutate func(*models.Template) error) (models.Template, error)
	Delete(ctx context.Context, id int64) error
}

// EventStore is the persistence capability needed by EventService.
type EventStore interface {
	Create(ctx context.Context, event models.Event) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Event, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tokens issues and verifies signed identity tokens.
type Tokens interface {
	Issue(subject int64) (string, error)
	Verify(token string) (int64, error)
	IssueReset(subject int64) (string, error)
	VerifyReset(token string) (int64, error)
}

// Publisher fans out template changes to live subscribers.
type Publisher interface {
	Publish(action string, payload interface{})
}
