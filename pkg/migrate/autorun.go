package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

// ApplyOnBoot brings the schema up to date from the embedded set. It only
// acts in dev with PACKDROP_AUTO_MIGRATE on; other environments run
// cmd/migrate as a release step.
func ApplyOnBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	before, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return err
	}
	after, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"from_version": before,
			"to_version":   after,
			"applied":      before != after,
		}), "migrate.boot_applied")
	}
	return nil
}
