package cmd

import (
	"database/sql"
	"fmt"

	"github.com/isdelr/stencil-be/internal/config"
	"github.com/isdelr/stencil-be/internal/database"
	"github.com/isdelr/stencil-be/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *sql.DB) error {
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			version, err := database.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			log.Info().Int64("version", version).Msg("Database is up to date")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *sql.DB) error {
			return database.Status(cmd.Context(), db)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func withDatabase(fn func(*sql.DB) error) error {
	cfg, err := config.LoadStorage()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
