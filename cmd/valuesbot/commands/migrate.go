package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

// newMigrateCmd creates the `valuesbot migrate` command.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Long: `Apply pending schema migrations to the configured database, or show the
current schema version with --status.

Examples:
  valuesbot migrate
  valuesbot migrate --target 1
  valuesbot migrate --status`,
		RunE: runMigrate,
	}

	cmd.Flags().Int("target", 0, "migrate up to this version (0 = latest)")
	cmd.Flags().Bool("status", false, "print the schema version and exit")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}

	dbCfg := cfg.Database
	off := false
	dbCfg.AutoMigrate = &off

	ctx := context.Background()
	hub, err := database.NewHub(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer hub.Close()

	out := cmd.OutOrStdout()
	primary := hub.Primary()
	if primary.Migrator == nil {
		return fmt.Errorf("backend %q has no migrator", primary.Name)
	}

	if status, _ := cmd.Flags().GetBool("status"); status {
		current, err := primary.Migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		pending, err := primary.Migrator.NeedsMigration(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "backend:  %s (%s)\n", primary.Name, primary.Type)
		fmt.Fprintf(out, "version:  %d of %d\n", current, primary.Migrator.LatestVersion())
		fmt.Fprintf(out, "pending:  %t\n", pending)
		return nil
	}

	target, _ := cmd.Flags().GetInt("target")
	if err := hub.Migrate(ctx, "", target); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	current, err := primary.Migrator.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema at version %d\n", current)
	return nil
}
