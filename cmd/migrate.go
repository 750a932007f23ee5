package cmd

import (
	"fmt"

	"visit-tracker/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations("up", database.MigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations("down", database.MigrateDown)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations("status", database.MigrateStatus)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrations(name string, run func(databaseURL string) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := run(cfg.DatabaseURL()); err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	log.Info("migrate: ok", "step", name)
	return nil
}
