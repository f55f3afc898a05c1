package main

import (
	"fmt"

	"callos/internal/config"
	"callos/internal/store"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			db, closeDB, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeDB() }()

			if err := store.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(store.AllModels()))
			return nil
		},
	}
}
