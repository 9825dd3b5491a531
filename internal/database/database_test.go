package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))

	for _, table := range []string{"users", "templates", "events"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	version, err := Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Idempotent.
	require.NoError(t, Migrate(ctx, db))
}

func TestMigrate_VisibilityConstraint(t *testing.T) {
	ctx := context.Background()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db))

	_, err = db.ExecContext(ctx,
		"INSERT INTO templates (name, content, visibility, created_at, updated_at) VALUES ('n', 'c', 'SECRET', 0, 0)")
	assert.Error(t, err)
}

func TestNew_ForeignKeysEnabled(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var enabled int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestStatus_AfterMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	assert.NoError(t, Status(ctx, db))
}
