// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pipit-social/pipit/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, databaseURL)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to PIPIT_DATABASE_URL)")
	cmd.AddCommand(newMigrateStatusCmd(&databaseURL))

	return cmd
}

func newMigrateStatusCmd(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator(*databaseURL)
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck // status output already written

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			cmd.Printf("version: %d dirty: %v\n", version, dirty)
			return nil
		},
	}
}

func runMigrate(cmd *cobra.Command, databaseURL string) error {
	m, err := openMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // migration outcome already reported

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func openMigrator(databaseURL string) (*store.Migrator, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("PIPIT_DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (--database-url or PIPIT_DATABASE_URL)")
	}
	return store.NewMigrator(databaseURL)
}
