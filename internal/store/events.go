package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/isdelr/stencil-be/internal/models"
)

// EventRepository persists the audit trail.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event models.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.Level, event.Message, event.UserID, toMillis(event.CreatedAt))
	return err
}

// ListByUser returns the most recent events of a user, newest first.
func (r *EventRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, level, message, user_id, created_at FROM events
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			event   models.Event
			user    sql.NullInt64
			created int64
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &user, &created); err != nil {
			return nil, err
		}
		if user.Valid {
			id := user.Int64
			event.UserID = &id
		}
		event.CreatedAt = fromMillis(created)
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteBefore removes events created before cutoff and reports how many
// were removed.
func (r *EventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
