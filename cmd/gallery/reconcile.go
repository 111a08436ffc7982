package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete stored objects that no image references",
	Long: `Scan the upload prefix in object storage and delete every object that
has no image row. Such objects are left behind when an upload stores the
file but fails to record it and the cleanup delete also fails.

Objects younger than --min-age are skipped so uploads in progress are safe.

Examples:
  # Report orphans without deleting anything
  gallery reconcile --dry-run

  # Delete orphans older than a day without prompting
  gallery reconcile --min-age 24h --yes`,
	RunE: runReconcile,
}

var (
	reconcileDryRun    bool
	reconcileMinAge    time.Duration
	reconcileBatchSize int
	reconcileYes       bool
)

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report orphaned objects without deleting them")
	reconcileCmd.Flags().DurationVar(&reconcileMinAge, "min-age", time.Hour, "only consider objects at least this old")
	reconcileCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", 500, "number of keys checked against the database per query")
	reconcileCmd.Flags().BoolVarP(&reconcileYes, "yes", "y", false, "delete without asking for confirmation")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Always scan first so the prompt can show what would go.
	scan, err := a.service.Reconcile(ctx, gallery.ReconcileQuery{
		MinAge:    reconcileMinAge,
		DryRun:    true,
		BatchSize: reconcileBatchSize,
	})
	if err != nil {
		return fmt.Errorf("scan storage: %w", err)
	}

	for _, key := range scan.Orphaned {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}

	slog.Info("scan complete", "scanned", scan.Scanned, "orphaned", len(scan.Orphaned))

	if reconcileDryRun || len(scan.Orphaned) == 0 {
		return nil
	}

	if !reconcileYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete %d orphaned objects", len(scan.Orphaned)),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			if errors.Is(promptErr, promptui.ErrInterrupt) {
				return promptErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil //nolint:nilerr // User declined, not an error
		}
	}

	result, err := a.service.Reconcile(ctx, gallery.ReconcileQuery{
		MinAge:    reconcileMinAge,
		BatchSize: reconcileBatchSize,
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("reconcile complete", "scanned", result.Scanned, "deleted", result.Deleted)
	return nil
}
