package main

import (
	"context"
	"log"

	"authcore/internal/config"
	"authcore/internal/database"
	"authcore/internal/modules/cleanup"
	"authcore/internal/observability/metrics"
	"authcore/internal/repository"

	"go.uber.org/zap"
)

// One-shot sweep for cron deployments; the api binary runs the same
// sweeps on its own interval.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}

	metrics.MustRegister()

	sweeper := cleanup.NewService(
		repository.NewSessionRepository(db),
		repository.NewRefreshTokenRepository(db),
		nil,
		logger,
		cfg.CleanupInterval,
		cfg.CleanupRetention,
		cfg.SessionIdleTTL,
	)
	if err := sweeper.RunOnce(context.Background()); err != nil {
		logger.Fatal("cleanup failed", zap.Error(err))
	}
}
