package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

// MaybeRunDev brings the schema up to date on start when running in dev with
// auto-migrate enabled. It is a no-op everywhere else; deployed environments
// migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})

	if client.Driver() == config.DriverSQLite {
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "schema built from models")
		return nil
	}

	version, err := upEmbedded(ctx, client)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "embedded migrations applied")
	return nil
}

// upEmbedded applies every embedded migration and returns the resulting
// schema version.
func upEmbedded(ctx context.Context, client *db.Client) (int64, error) {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return 0, fmt.Errorf("extract sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, EmbeddedDir, "up"); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// AutoMigrateModels creates or updates every ledger table from the models.
// Only SQLite uses it; Postgres constraints live in the SQL migrations.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
