// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/btouchard/eureka/internal/adapters/http"
	"github.com/btouchard/eureka/internal/adapters/memory"
	"github.com/btouchard/eureka/internal/adapters/postgres"
	"github.com/btouchard/eureka/internal/app"
	"github.com/btouchard/eureka/internal/config"
	"github.com/btouchard/eureka/internal/middleware"
	"github.com/btouchard/eureka/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	var repo httpadapter.Repository
	if cfg.DatabaseURL != "" {
		store, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		repo = store.RegistrationRepository()
		logger.Info("using PostgreSQL repository")
	} else {
		repo = memory.NewRepository()
		logger.Info("using in-memory repository")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registrySvc := app.NewRegistryService(repo, logger)
	evictor := services.NewEvictor(registrySvc, cfg.EvictionInterval, logger)
	go evictor.Start(ctx)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
	defer rateLimiter.Stop()

	mux := httpadapter.NewRouter(httpadapter.RouterConfig{
		Repository:  repo,
		RateLimiter: rateLimiter,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("registry server started",
		"addr", cfg.ListenAddr,
		"eviction_interval", cfg.EvictionInterval,
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("registry server stopped")
}
