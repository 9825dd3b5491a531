package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error
	GetRecentEvents(ctx context.Context, caller auth.Caller, limit int) ([]models.Event, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventService keeps the audit trail of account and template activity.
type EventService struct {
	events EventStore
	now    func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events, now: time.Now}
}

// CreateEvent appends a new event to the audit trail.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error {
	return s.events.Create(ctx, models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: s.now(),
	})
}

// GetRecentEvents returns the caller's most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, caller auth.Caller, limit int) ([]models.Event, error) {
	userID, err := requireUser(caller)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return s.events.ListByUser(ctx, userID, limit)
}

// PruneBefore deletes events older than cutoff.
func (s *EventService) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.events.DeleteBefore(ctx, cutoff)
}

// recordEvent writes an audit event. Failures are logged and never fail the
// operation being audited.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType, message string, userID *int64) {
	if events == nil {
		return
	}
	if err := events.CreateEvent(ctx, eventType, "info", message, userID); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}
