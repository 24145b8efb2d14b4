package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmehdipour/car-rating/internal/db"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	migrationsDir  string
	skipClickHouse bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := migrateMySQL(cmd.Context()); err != nil {
			return err
		}
		if skipClickHouse || cfg.ClickHouse.DSN == "" {
			logger.Log.Info("clickhouse migration skipped")
			return nil
		}
		return migrateClickHouse()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")
	migrateCmd.Flags().BoolVar(&skipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}

func migrateMySQL(ctx context.Context) error {
	sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sqlDB.Close()

	sqlPath := filepath.Join(migrationsDir, "001_init.sql")
	sqlBytes, err := os.ReadFile(sqlPath)
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", sqlPath, err)
	}

	if err := db.ApplyMySQLScript(ctx, sqlDB, string(sqlBytes)); err != nil {
		return err
	}

	logger.Log.Info("mysql migration complete", zap.String("file", sqlPath))
	return nil
}

func migrateClickHouse() error {
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	sqlPath := filepath.Join(migrationsDir, "clickhouse", "001_rate_events.sql")
	sqlBytes, err := os.ReadFile(sqlPath)
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", sqlPath, err)
	}
	// clickhouse-go runs one statement per Exec
	if _, err := chDB.Exec(string(sqlBytes)); err != nil {
		return fmt.Errorf("exec clickhouse migration: %w", err)
	}

	logger.Log.Info("clickhouse migration complete", zap.String("file", sqlPath))
	return nil
}
