package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestDatabase_Migrate(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", gallery.DefaultTables())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, db.Migrate(ctx), "first migrate should succeed")
	require.NoError(t, db.Migrate(ctx), "second migrate should succeed")
	assert.NoError(t, db.Validate(ctx))
}

func TestDatabase_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("error - tables missing", func(t *testing.T) {
		db, err := sqlite.Connect(ctx, ":memory:", gallery.DefaultTables())
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		err = db.Validate(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("error - column missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.db")

		raw, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		_, err = raw.ExecContext(ctx, `CREATE TABLE images (id INTEGER NOT NULL PRIMARY KEY, title TEXT NOT NULL)`)
		require.NoError(t, err)
		_, err = raw.ExecContext(ctx, `CREATE TABLE comments (id INTEGER NOT NULL PRIMARY KEY, content TEXT NOT NULL, image_id INTEGER NOT NULL, created_at TEXT NOT NULL)`)
		require.NoError(t, err)
		require.NoError(t, raw.Close())

		db, err := sqlite.Connect(ctx, path, gallery.DefaultTables())
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		err = db.Validate(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing columns")
		assert.Contains(t, err.Error(), "storage_key")
	})
}

func TestDatabase_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gallery.db")

	db, err := sqlite.Connect(ctx, path, gallery.DefaultTables())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	_, err = db.GetRepo().CreateImage(ctx, gallery.NewImage{Title: "kept", StorageKey: "user-upload/1-kept.png"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := sqlite.Connect(ctx, path, gallery.DefaultTables())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	n, err := reopened.GetRepo().CountImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDatabase_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gallery.db?mode=rwc")

	db, err := sqlite.Connect(ctx, "file:"+path, gallery.DefaultTables())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Migrate(ctx))

	_, err = db.GetRepo().CreateComment(ctx, gallery.NewComment{ImageID: 42, Content: "nobody home"})
	assert.ErrorIs(t, err, gallery.ErrNotFound)
}

func TestDropTables(t *testing.T) {
	ctx := context.Background()

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	defer func() { _ = raw.Close() }()

	tables := gallery.DefaultTables()
	require.NoError(t, sqlite.Migrate(ctx, raw, tables))
	require.NoError(t, sqlite.ValidateSchema(ctx, raw, tables))

	require.NoError(t, sqlite.DropTables(ctx, raw, tables))
	assert.Error(t, sqlite.ValidateSchema(ctx, raw, tables))

	assert.NoError(t, sqlite.DropTables(ctx, raw, tables), "dropping missing tables should succeed")
}
