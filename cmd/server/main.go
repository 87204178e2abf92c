// Command server runs the NovaHunt storefront backend.
package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app"
	"github.com/2456Zebra/novahunt-sub001/app/config"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := app.OpenDB(cfg.DB)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := app.Migrate(context.Background(), db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	srv := app.NewServer(cfg, db, logger)

	scheduler := app.NewQuotaResetScheduler(app.NewQuotas(db, cfg.Quota), cfg.Quota.ResetSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start quota scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	router := app.NewRouter(srv)
	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
