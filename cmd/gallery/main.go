package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/gallery/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "gallery",
	Short:   "Image gallery server backed by object storage",
	Long: `Gallery serves an image gallery: uploads go to object storage (S3 or a
local directory), image and comment metadata go to PostgreSQL or SQLite,
and images are linked through a CDN domain.

Secrets are resolved at boot. In development they come from the environment
and an optional .env file; in production from an AWS Secrets Manager secret.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "runtime environment: development, production (env: GALLERY_ENV)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: inferred from DATABASE_URL)")
	rootCmd.PersistentFlags().String("storage-backend", "", "object storage backend: s3, filesystem (env: GALLERY_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory for the filesystem backend (default: ./data)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
