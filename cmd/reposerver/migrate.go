package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users and posts tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := cfg.Log.Build()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := openDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := createTables(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("tables ready", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
