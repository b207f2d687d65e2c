package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/postgres"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down|status>",
	Short:     "Manages the PostgreSQL schema",
	Long:      "Applies, rolls back or lists PostgreSQL migrations. Requires DATABASE_URL; the store driver is forced to postgres.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	storeDriver = string(config.StorePostgres)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	conn, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	out := cmd.OutOrStdout()

	switch args[0] {
	case "up":
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Fprintln(out, "Migrations applied")
	case "down":
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintln(out, "Last migration rolled back")
	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "-"
			if m.IsApplied {
				applied = m.AppliedAt.UTC().Format(timeutil.FormatDateTime)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return w.Flush()
	}
	return nil
}
