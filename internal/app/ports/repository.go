// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ports defines the interfaces (ports) used by the application layer.
// These interfaces are implemented by adapters (memory, postgres).
// Following hexagonal architecture: interfaces are declared where they are consumed.
package ports

import (
	"context"
	"time"

	"github.com/btouchard/eureka/internal/domain"
)

// RegistrationRepository defines persistence operations for
// registrations. App names passed in are expected in canonical form
// (domain.NormalizeAppName).
type RegistrationRepository interface {
	// Save persists a registration (insert or update).
	Save(ctx context.Context, reg *domain.Registration) error

	// Find retrieves a registration by app name and instance ID.
	// Returns domain.ErrInstanceNotFound if not found.
	Find(ctx context.Context, appName, instanceID string) (*domain.Registration, error)

	// FindByInstanceID retrieves a registration by instance ID alone.
	// Returns domain.ErrInstanceNotFound if not found.
	FindByInstanceID(ctx context.Context, instanceID string) (*domain.Registration, error)

	// Delete removes a registration.
	// Returns domain.ErrInstanceNotFound if not found.
	Delete(ctx context.Context, appName, instanceID string) error

	// ListAll returns every registration.
	ListAll(ctx context.Context) ([]*domain.Registration, error)

	// ListByApp returns the registrations of one app. An unknown app
	// yields an empty slice, not an error.
	ListByApp(ctx context.Context, appName string) ([]*domain.Registration, error)

	// ListByVIP returns the registrations grouped under a (secure)
	// virtual IP address.
	ListByVIP(ctx context.Context, vipAddress string, secure bool) ([]*domain.Registration, error)

	// DeleteExpired removes every registration whose lease lapsed at
	// now and returns their instance IDs.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// RegistryStats holds aggregated counters for the admin endpoint.
type RegistryStats struct {
	Apps      int            `json:"apps"`
	Instances int            `json:"instances"`
	ByStatus  map[string]int `json:"by_status"`
}

// StatsReader defines read operations for the admin stats endpoint.
// Separated from the write repository for CQRS-lite pattern.
type StatsReader interface {
	// Stats returns aggregated registry statistics.
	Stats(ctx context.Context) (RegistryStats, error)
}
