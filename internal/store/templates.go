package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/stencil-be/internal/dbx"
	"github.com/isdelr/stencil-be/internal/models"
)

// TemplateRepository handles persistence for templates.
type TemplateRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db, now: time.Now}
}

const templateColumns = `id, name, content, owner_id, visibility, created_at, updated_at`

// scanTemplate is a helper to scan a template from a row or rows object.
func scanTemplate(row scanner) (models.Template, error) {
	var (
		tmpl             models.Template
		owner            sql.NullInt64
		visibility       string
		created, updated int64
	)
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Content, &owner, &visibility, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, ErrNotFound
		}
		return models.Template{}, err
	}
	if owner.Valid {
		id := owner.Int64
		tmpl.OwnerID = &id
	}
	tmpl.Visibility = models.Visibility(visibility)
	tmpl.CreatedAt = fromMillis(created)
	tmpl.UpdatedAt = fromMillis(updated)
	return tmpl, nil
}

func (r *TemplateRepository) query(ctx context.Context, query string, args ...any) ([]models.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// Create inserts tmpl and fills in its ID and timestamps.
func (r *TemplateRepository) Create(ctx context.Context, tmpl *models.Template) error {
	if tmpl.Visibility == "" {
		tmpl.Visibility = models.VisibilityPublic
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	const query = `
		INSERT INTO templates (name, content, owner_id, visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		tmpl.Name, tmpl.Content, tmpl.OwnerID, string(tmpl.Visibility), toMillis(now), toMillis(now),
	).Scan(&tmpl.ID)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (models.Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// ListByVisibility returns one page of templates with the given visibility in
// id order.
func (r *TemplateRepository) ListByVisibility(ctx context.Context, visibility models.Visibility, skip, limit int) ([]models.Template, error) {
	return r.query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE visibility = ? ORDER BY id LIMIT ? OFFSET ?`,
		string(visibility), limit, skip)
}

func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Template, error) {
	return r.query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE owner_id = ? ORDER BY id`,
		ownerID)
}

// Modify loads the template with id, hands it to mutate and writes back its
// name, content and visibility, all inside one transaction. Concurrent calls
// for the same record are serialized, so mutate always sees the latest
// committed state. An error from mutate aborts the write and is returned
// unchanged.
func (r *TemplateRepository) Modify(ctx context.Context, id int64, mutate func(*models.Template) error) (models.Template, error) {
	var tmpl models.Template
	err := dbx.WithTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		row := tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
		if tmpl, err = scanTemplate(row); err != nil {
			return err
		}
		if err := mutate(&tmpl); err != nil {
			return err
		}

		now := r.now().UTC().Truncate(time.Millisecond)
		result, err := tx.ExecContext(ctx,
			`UPDATE templates SET name = ?, content = ?, visibility = ?, updated_at = ? WHERE id = ?`,
			tmpl.Name, tmpl.Content, string(tmpl.Visibility), toMillis(now), id)
		if err != nil {
			return fmt.Errorf("update template: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		tmpl.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Template{}, err
	}
	return tmpl, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
