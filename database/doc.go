// Package database connects the gallery to its metadata backend.
//
// # Supported Backends
//
//   - PostgreSQL: production backend using a pgx connection pool
//   - SQLite: single-node and development backend using modernc.org/sqlite
//
// The backend is taken from Config.Type, or inferred from the connection URL
// when Type is empty (postgres:// and postgresql:// select PostgreSQL, while
// sqlite://, file:, :memory: and plain paths select SQLite).
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    DSN:         os.Getenv("DATABASE_URL"),
//	    Tables:      gallery.DefaultTables(),
//	    AutoMigrate: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	repo := db.GetRepo()
//
// Connect only opens the connection. Callers run Migrate or Validate
// depending on Config.AutoMigrate.
package database
