package main

import (
	"fmt"
	"os"

	"reporting-service/internal/auth"
	"reporting-service/internal/config"
	"reporting-service/internal/db"
	httphandler "reporting-service/internal/http"
	"reporting-service/internal/http/middleware"
	"reporting-service/internal/logger"
	"reporting-service/internal/repository"
	"reporting-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	refresher := db.NewRefresher(database, appLogger)
	if err := refresher.Start(cfg.Reports.RollupRefreshCron); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to start rollup refresher")
	}
	defer refresher.Stop()

	scopeRepo := repository.NewScopeRepository(database)
	reportRepo := repository.NewReportRepository(database)
	reportService, err := service.NewReportService(scopeRepo, reportRepo)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("invalid report catalog")
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(reportService, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	limitMiddleware := middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	router := httphandler.NewRouter(handler, authMiddleware, limitMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting reporting service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
