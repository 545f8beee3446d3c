// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory provides the in-memory repository. A Eureka registry
// is canonically memory-resident; this is the default store when no
// DATABASE_URL is configured, and the one integration tests run on.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/btouchard/eureka/internal/app/ports"
	"github.com/btouchard/eureka/internal/domain"
)

// Repository implements ports.RegistrationRepository and
// ports.StatsReader with mutex-guarded maps.
type Repository struct {
	mu   sync.RWMutex
	apps map[string]map[string]*domain.Registration // app name -> instance id -> registration
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		apps: make(map[string]map[string]*domain.Registration),
	}
}

// Save persists a registration (insert or update). The stored value
// is a copy so callers cannot mutate the registry behind the lock.
func (r *Repository) Save(ctx context.Context, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instances, ok := r.apps[reg.AppName]
	if !ok {
		instances = make(map[string]*domain.Registration)
		r.apps[reg.AppName] = instances
	}
	instances[reg.InstanceID] = clone(reg)
	return nil
}

// Find retrieves a registration by app name and instance ID.
func (r *Repository) Find(ctx context.Context, appName, instanceID string) (*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.apps[appName][instanceID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return clone(reg), nil
}

// FindByInstanceID retrieves a registration by instance ID alone.
func (r *Repository) FindByInstanceID(ctx context.Context, instanceID string) (*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, instances := range r.apps {
		if reg, ok := instances[instanceID]; ok {
			return clone(reg), nil
		}
	}
	return nil, domain.ErrInstanceNotFound
}

// Delete removes a registration.
func (r *Repository) Delete(ctx context.Context, appName, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instances, ok := r.apps[appName]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	if _, ok := instances[instanceID]; !ok {
		return domain.ErrInstanceNotFound
	}
	delete(instances, instanceID)
	if len(instances) == 0 {
		delete(r.apps, appName)
	}
	return nil
}

// ListAll returns every registration.
func (r *Repository) ListAll(ctx context.Context) ([]*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Registration
	for _, instances := range r.apps {
		for _, reg := range instances {
			out = append(out, clone(reg))
		}
	}
	return out, nil
}

// ListByApp returns the registrations of one app.
func (r *Repository) ListByApp(ctx context.Context, appName string) ([]*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Registration
	for _, reg := range r.apps[appName] {
		out = append(out, clone(reg))
	}
	return out, nil
}

// ListByVIP returns the registrations grouped under a (secure)
// virtual IP address.
func (r *Repository) ListByVIP(ctx context.Context, vipAddress string, secure bool) ([]*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Registration
	for _, instances := range r.apps {
		for _, reg := range instances {
			addr := reg.VIPAddress
			if secure {
				addr = reg.SVIPAddress
			}
			if addr == vipAddress {
				out = append(out, clone(reg))
			}
		}
	}
	return out, nil
}

// DeleteExpired removes every registration whose lease lapsed at now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for appName, instances := range r.apps {
		for instanceID, reg := range instances {
			if reg.Expired(now) {
				delete(instances, instanceID)
				evicted = append(evicted, instanceID)
			}
		}
		if len(instances) == 0 {
			delete(r.apps, appName)
		}
	}
	return evicted, nil
}

// Stats returns aggregated registry statistics.
func (r *Repository) Stats(ctx context.Context) (ports.RegistryStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ports.RegistryStats{
		Apps:     len(r.apps),
		ByStatus: make(map[string]int),
	}
	for _, instances := range r.apps {
		stats.Instances += len(instances)
		for _, reg := range instances {
			stats.ByStatus[reg.EffectiveStatus().String()]++
		}
	}
	return stats, nil
}

// clone copies a registration, including its metadata map.
func clone(reg *domain.Registration) *domain.Registration {
	c := *reg
	if reg.Metadata != nil {
		c.Metadata = make(map[string]any, len(reg.Metadata))
		for k, v := range reg.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
