package main

import (
	"github.com/spf13/cobra"

	"github.com/d60-Lab/ideagraph/pkg/database"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := database.InitDB(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("schema migrated")
		return nil
	},
}
