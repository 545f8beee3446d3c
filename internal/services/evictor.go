// SPDX-License-Identifier: AGPL-3.0-or-later

// Package services holds background tasks that run alongside the HTTP
// server.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/btouchard/eureka/internal/app"
)

// Evictor periodically removes registrations whose lease expired
// without a renewal.
type Evictor struct {
	registry *app.RegistryService
	interval time.Duration
	logger   *slog.Logger
}

// NewEvictor creates a new Evictor sweeping at the given interval.
func NewEvictor(registry *app.RegistryService, interval time.Duration, logger *slog.Logger) *Evictor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evictor{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the eviction loop. This function blocks until the context
// is cancelled.
func (e *Evictor) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("evictor started", "interval", e.interval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("evictor stopped")
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Evictor) sweep(ctx context.Context) {
	evicted, err := e.registry.EvictExpired(ctx)
	if err != nil {
		e.logger.Error("lease eviction failed", "error", err)
		return
	}
	if len(evicted) > 0 {
		e.logger.Info("evicted expired leases", "count", len(evicted), "instance_ids", evicted)
	}
}
