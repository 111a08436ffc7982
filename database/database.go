package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/database/postgres"
	"github.com/sagarc03/gallery/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type is "sqlite" or "postgres". Empty means infer from DSN.
	Type string `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres"`
	// DSN is the connection URL. It is resolved at boot, never read from config files.
	DSN         string         `mapstructure:"-"`
	Tables      gallery.Tables `mapstructure:"tables"`
	AutoMigrate bool           `mapstructure:"auto_migrate"`
}

// Database is a connected metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() gallery.ImageRepo
	Close() error
}

// Connect opens the configured backend. It does not migrate or validate;
// callers decide that with Migrate and Validate.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	dbType := cfg.Type
	if dbType == "" {
		inferred, err := InferType(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		dbType = inferred
	}

	switch dbType {
	case "sqlite":
		db, err := sqlite.Connect(ctx, SQLitePath(cfg.DSN), cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// InferType maps a connection URL to a backend type.
//
//   - postgres://, postgresql:// → postgres
//   - sqlite://, file:, :memory: or a plain path → sqlite
func InferType(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", fmt.Errorf("infer database type: empty database url")
	}

	scheme, _, hasScheme := strings.Cut(dsn, "://")
	switch {
	case !hasScheme:
		// file:, :memory: and plain paths
		return "sqlite", nil
	case scheme == "postgres" || scheme == "postgresql":
		return "postgres", nil
	case scheme == "sqlite" || scheme == "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("infer database type: unsupported scheme %q", scheme)
	}
}

// SQLitePath strips a sqlite:// scheme, leaving a path or file: URI the
// driver understands. Other values pass through.
func SQLitePath(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite3://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return rest
		}
	}
	return dsn
}
