package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console"})
	return db.Initialize(&cfg.Database)
}

// truecarctl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
		return db.Migrate()
	},
}
