package sqlite_test

import (
	"context"
	"testing"

	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/database/sqlite"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a repo on a private in-memory database.
func setupTestRepo(t *testing.T) gallery.ImageRepo {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", gallery.DefaultTables())
	require.NoError(t, err, "failed to connect")

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	t.Cleanup(func() { _ = db.Close() })

	return db.GetRepo()
}
