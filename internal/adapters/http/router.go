// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"log/slog"
	"net/http"

	"github.com/btouchard/eureka/internal/app"
	"github.com/btouchard/eureka/internal/app/ports"
	"github.com/btouchard/eureka/internal/middleware"
)

// Repository bundles the persistence interfaces the router needs. Both
// the memory and postgres adapters satisfy it.
type Repository interface {
	ports.RegistrationRepository
	ports.StatsReader
}

// RouterConfig holds the configuration for creating a new router.
type RouterConfig struct {
	Repository  Repository
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// NewRouter creates a fully wired HTTP router with all handlers and middleware.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registrySvc := app.NewRegistryService(cfg.Repository, logger)
	statsSvc := app.NewStatsService(cfg.Repository)

	handlers := NewHandlers(registrySvc, statsSvc, logger)

	mux := http.NewServeMux()

	// Health check (no rate limit)
	mux.HandleFunc("/api/v1/healthcheck", handlers.Healthcheck)

	rl := cfg.RateLimiter
	if rl != nil {
		mux.HandleFunc("/eureka/apps", rl.QueryMiddleware(handlers.Apps))
		mux.HandleFunc("/eureka/apps/", rl.LifecycleMiddleware(handlers.AppsRoute))
		mux.HandleFunc("/eureka/instances/", rl.QueryMiddleware(handlers.InstancesRoute))
		mux.HandleFunc("/eureka/vips/", rl.QueryMiddleware(handlers.VIPsRoute))
		mux.HandleFunc("/eureka/svips/", rl.QueryMiddleware(handlers.SVIPsRoute))
		mux.HandleFunc("/api/v1/admin/stats", rl.AdminMiddleware(handlers.AdminStats))
	} else {
		// No rate limiting (for testing)
		mux.HandleFunc("/eureka/apps", handlers.Apps)
		mux.HandleFunc("/eureka/apps/", handlers.AppsRoute)
		mux.HandleFunc("/eureka/instances/", handlers.InstancesRoute)
		mux.HandleFunc("/eureka/vips/", handlers.VIPsRoute)
		mux.HandleFunc("/eureka/svips/", handlers.SVIPsRoute)
		mux.HandleFunc("/api/v1/admin/stats", handlers.AdminStats)
	}

	return mux
}
