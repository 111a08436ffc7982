package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/config"
	"github.com/sagarc03/gallery/database"
	"github.com/sagarc03/gallery/filesystem"
	"github.com/sagarc03/gallery/objectstore"
)

// app holds the long-lived handles built at boot.
type app struct {
	cfg      *config.Config
	settings config.Settings
	db       database.Database
	storage  gallery.ObjectStorage
	service  *gallery.GalleryService

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// resolveSettings runs the resolver for the configured mode. Failures are
// logged with an operator hint before being returned.
func resolveSettings(ctx context.Context, cfg *config.Config) (config.Settings, error) {
	resolver := config.NewResolver()
	resolver.SkipStorageCredentials = cfg.Storage.Backend == "filesystem"

	settings, err := resolver.Resolve(ctx, cfg.Mode())
	if err != nil {
		attrs := []any{"err", err, "mode", cfg.Mode()}
		if hint := config.Hint(err); hint != "" {
			attrs = append(attrs, "hint", hint)
		}
		slog.Error("resolve configuration", attrs...)
		return config.Settings{}, fmt.Errorf("resolve configuration: %w", err)
	}

	return settings, nil
}

// connectDatabase connects and pings the metadata store.
func connectDatabase(ctx context.Context, cfg *config.Config, settings config.Settings) (database.Database, error) {
	dbCfg := cfg.Database
	dbCfg.DSN = settings.DatabaseURL

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// bootstrap resolves settings, prepares the database schema and builds the
// storage backend and service. The caller must Close the returned app.
func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	settings, err := resolveSettings(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, settings: settings}

	db, err := connectDatabase(ctx, cfg, settings)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	} else if err := db.Validate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("connected to database", "type", cfg.Database.Type)

	storage, closeStorage, err := openStorage(ctx, cfg, settings)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.storage = storage
	a.closers = append(a.closers, closeStorage)

	service, err := gallery.NewGalleryService(db.GetRepo(), storage, gallery.ServiceConfig{
		CDNDomain:      settings.CDNDomain,
		KeyPrefix:      cfg.Service.KeyPrefix,
		MaxPageSize:    cfg.Server.MaxPageSize,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}
	a.service = service

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.Config, settings config.Settings) (gallery.ObjectStorage, func(), error) {
	switch cfg.Storage.Backend {
	case "filesystem":
		if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}

		slog.Info("using filesystem storage", "path", cfg.Storage.Path)
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil

	case "s3":
		opts := config.AWSOptions{
			Region:  settings.Storage.Region,
			RoleARN: settings.RoleARN,
		}
		if settings.Storage.HasStaticCredentials() {
			opts.AccessKeyID = settings.Storage.AccessKeyID
			opts.SecretAccessKey = settings.Storage.SecretAccessKey
		}

		awsCfg, err := config.LoadAWSConfig(ctx, opts)
		if err != nil {
			return nil, nil, err
		}

		client := objectstore.NewClient(awsCfg, objectstore.ClientOptions{
			Endpoint:     settings.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})

		store, err := objectstore.New(client, settings.Storage.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("create object store: %w", err)
		}

		slog.Info("using s3 storage",
			"bucket", settings.Storage.Bucket,
			"region", settings.Storage.Region,
			"endpoint", settings.Storage.Endpoint,
		)
		return store, func() {}, nil

	default:
		return nil, nil, errors.New("unsupported storage backend: " + cfg.Storage.Backend)
	}
}
