package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockroomhq/stockroom/internal/config"
	"github.com/stockroomhq/stockroom/internal/storage/migrations"
	"github.com/stockroomhq/stockroom/pkg/db"
	"github.com/stockroomhq/stockroom/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return migrate(cmd.Context(), cfg)
	},
}

func migrate(ctx context.Context, cfg config.Config) error {
	log := logger.New()

	pool, err := db.Connect(ctx, db.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { _ = db.Shutdown(pool)(context.Background()) }()

	if err := db.Migrate(ctx, pool, migrations.FS, "schema_migrations", log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.InfoContext(ctx, "migrations applied")
	return nil
}
