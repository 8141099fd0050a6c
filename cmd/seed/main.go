// Command seed applies schema migrations and seeds the RBAC catalogs. Run it
// once before the application starts accepting traffic; repeated runs are
// no-ops.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/partshub-erp/partshub-erp/internal/app"
	"github.com/partshub-erp/partshub-erp/internal/platform/db"
	"github.com/partshub-erp/partshub-erp/internal/rbac"
)

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	service := rbac.NewService(rbac.ServiceConfig{
		Store:  rbac.NewRepository(pool),
		Logger: logger,
	})
	if err := service.Initialize(ctx); err != nil {
		logger.Error("seed rbac catalogs", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rbac ready")
}
