package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/gallery/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create the images and comments tables and their indexes, then
validate the resulting schema. Running it again is a no-op.

Use this when database.auto_migrate is off and the server only validates.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	settings, err := resolveSettings(ctx, cfg)
	if err != nil {
		return err
	}

	db, err := connectDatabase(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err := db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("database migration complete",
		"images_table", cfg.Database.Tables.Images,
		"comments_table", cfg.Database.Tables.Comments,
	)
	return nil
}
