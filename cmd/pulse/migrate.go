package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("database.url is required for migrate")
		}

		db, err := store.NewPostgresStore(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context(), cfg.OpenAI.Dimensions); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		logger.Info("schema migrated", "dimensions", cfg.OpenAI.Dimensions)
		return nil
	},
}
