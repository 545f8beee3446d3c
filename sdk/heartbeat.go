// SPDX-License-Identifier: MIT

package sdk

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Heartbeat keeps one registration alive: it registers, renews the
// lease on a fixed interval, re-registers when the registry has
// already evicted the lease, and deregisters on shutdown. Each tick
// is guarded so one bad try doesn't kill checkins for good.
type Heartbeat struct {
	client   *Client
	interval time.Duration
	opts     RegisterOptions
	logger   *slog.Logger
}

// NewHeartbeat creates a Heartbeat renewing every interval. The
// interval should be shorter than opts.LeaseDuration; zero or
// negative defaults to 30 seconds.
func NewHeartbeat(client *Client, interval time.Duration, opts RegisterOptions, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		client:   client,
		interval: interval,
		opts:     opts,
		logger:   logger,
	}
}

// Run registers and then blocks, renewing until ctx is cancelled. On
// cancellation the instance is deregistered on a best-effort basis.
// Run returns an error only when the initial registration fails.
func (h *Heartbeat) Run(ctx context.Context) error {
	if err := h.client.Register(ctx, h.opts); err != nil {
		return err
	}
	h.logger.Info("instance registered",
		"app", h.client.AppName(),
		"instance_id", h.client.InstanceID(),
		"interval", h.interval,
	)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.deregister()
			return nil
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

// tick renews once. A 404 means the lease expired server-side, so the
// instance re-registers instead of treating it as a transient fault.
func (h *Heartbeat) tick(ctx context.Context) {
	err := h.client.Renew(ctx)
	if err == nil {
		h.logger.Debug("lease renewed", "instance_id", h.client.InstanceID())
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		h.logger.Warn("lease expired server-side, re-registering",
			"instance_id", h.client.InstanceID(),
		)
		if err := h.client.Register(ctx, h.opts); err != nil {
			h.logger.Error("re-registration failed", "error", err)
		}
		return
	}

	h.logger.Error("renewal failed", "instance_id", h.client.InstanceID(), "error", err)
}

// deregister runs with its own deadline because the loop's context is
// already cancelled by the time shutdown reaches it.
func (h *Heartbeat) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.client.Deregister(ctx); err != nil {
		h.logger.Warn("deregistration failed", "instance_id", h.client.InstanceID(), "error", err)
		return
	}
	h.logger.Info("instance deregistered", "instance_id", h.client.InstanceID())
}
