// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app implements the registry's use cases on top of the
// domain entities and the repository ports.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/eureka/internal/app/ports"
	"github.com/btouchard/eureka/internal/domain"
)

// RegisterInput holds the data needed to register an instance.
type RegisterInput struct {
	InstanceID          string
	AppName             string
	Hostname            string
	IPAddr              string
	Port                int
	PortEnabled         bool
	SecurePort          int
	SecurePortEnabled   bool
	VIPAddress          string
	SVIPAddress         string
	Status              string
	LeaseDurationSecs   int
	RenewalIntervalSecs int
	Metadata            map[string]any
	HealthCheckURL      string
	StatusPageURL       string
	HomePageURL         string
}

// RegistryService handles the registration lifecycle and queries.
type RegistryService struct {
	repo   ports.RegistrationRepository
	logger *slog.Logger
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(repo ports.RegistrationRepository, logger *slog.Logger) *RegistryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryService{
		repo:   repo,
		logger: logger,
	}
}

// Register registers a new instance or refreshes an existing one.
// Re-registering an instance id resets its lease and replaces its
// descriptor, but an existing status override survives.
func (s *RegistryService) Register(ctx context.Context, input RegisterInput) error {
	reg, err := domain.NewRegistration(
		input.InstanceID,
		input.AppName,
		input.LeaseDurationSecs,
		input.RenewalIntervalSecs,
	)
	if err != nil {
		return fmt.Errorf("register instance: %w", err)
	}

	reg.Hostname = input.Hostname
	reg.IPAddr = input.IPAddr
	reg.Port = input.Port
	reg.PortEnabled = input.PortEnabled
	reg.SecurePort = input.SecurePort
	reg.SecurePortEnabled = input.SecurePortEnabled
	reg.VIPAddress = input.VIPAddress
	reg.SVIPAddress = input.SVIPAddress
	reg.Metadata = input.Metadata
	reg.HealthCheckURL = input.HealthCheckURL
	reg.StatusPageURL = input.StatusPageURL
	reg.HomePageURL = input.HomePageURL

	if input.Status != "" {
		status := domain.Status(input.Status)
		if !status.Valid() {
			return fmt.Errorf("register instance: %w: %q", domain.ErrInvalidStatus, input.Status)
		}
		reg.Status = status
	}

	existing, err := s.repo.Find(ctx, reg.AppName, reg.InstanceID)
	if err == nil && existing != nil {
		reg.Override = existing.Override
	}

	if err := s.repo.Save(ctx, reg); err != nil {
		return fmt.Errorf("register instance: %w", err)
	}

	s.logger.Info("instance registered",
		"app", reg.AppName,
		"instance_id", reg.InstanceID,
		"lease_duration_secs", reg.Lease.DurationSecs,
	)
	return nil
}

// Renew extends an instance's lease. Unknown instances surface
// domain.ErrInstanceNotFound so the transport layer can answer 404,
// which tells the client to re-register.
func (s *RegistryService) Renew(ctx context.Context, appName, instanceID string) error {
	reg, err := s.repo.Find(ctx, domain.NormalizeAppName(appName), instanceID)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}

	reg.Renew(time.Now().UTC())

	if err := s.repo.Save(ctx, reg); err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}

	s.logger.Debug("lease renewed", "app", reg.AppName, "instance_id", instanceID)
	return nil
}

// Deregister removes an instance from the registry.
func (s *RegistryService) Deregister(ctx context.Context, appName, instanceID string) error {
	if err := s.repo.Delete(ctx, domain.NormalizeAppName(appName), instanceID); err != nil {
		return fmt.Errorf("deregister instance: %w", err)
	}

	s.logger.Info("instance deregistered", "app", domain.NormalizeAppName(appName), "instance_id", instanceID)
	return nil
}

// SetStatusOverride forces an instance's effective status.
func (s *RegistryService) SetStatusOverride(ctx context.Context, appName, instanceID, status string) error {
	reg, err := s.repo.Find(ctx, domain.NormalizeAppName(appName), instanceID)
	if err != nil {
		return fmt.Errorf("set status override: %w", err)
	}

	if err := reg.SetOverride(domain.Status(status)); err != nil {
		return fmt.Errorf("set status override: %w", err)
	}

	if err := s.repo.Save(ctx, reg); err != nil {
		return fmt.Errorf("set status override: %w", err)
	}

	s.logger.Info("status override set",
		"app", reg.AppName,
		"instance_id", instanceID,
		"status", status,
	)
	return nil
}

// ClearStatusOverride removes an instance's status override.
func (s *RegistryService) ClearStatusOverride(ctx context.Context, appName, instanceID string) error {
	reg, err := s.repo.Find(ctx, domain.NormalizeAppName(appName), instanceID)
	if err != nil {
		return fmt.Errorf("clear status override: %w", err)
	}

	reg.ClearOverride()

	if err := s.repo.Save(ctx, reg); err != nil {
		return fmt.Errorf("clear status override: %w", err)
	}

	s.logger.Info("status override cleared", "app", reg.AppName, "instance_id", instanceID)
	return nil
}

// UpdateMetadata sets one metadata key on an instance.
func (s *RegistryService) UpdateMetadata(ctx context.Context, appName, instanceID, key string, value any) error {
	reg, err := s.repo.Find(ctx, domain.NormalizeAppName(appName), instanceID)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}

	reg.SetMetadata(key, value)

	if err := s.repo.Save(ctx, reg); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}

	s.logger.Debug("metadata updated", "app", reg.AppName, "instance_id", instanceID, "key", key)
	return nil
}

// EvictExpired removes every registration whose lease lapsed and
// returns the evicted instance IDs.
func (s *RegistryService) EvictExpired(ctx context.Context) ([]string, error) {
	evicted, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("evict expired leases: %w", err)
	}
	return evicted, nil
}

// ListAll returns every registration.
func (s *RegistryService) ListAll(ctx context.Context) ([]*domain.Registration, error) {
	regs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// GetApp returns the registrations of one app. An app with no
// registrations is domain.ErrAppNotFound.
func (s *RegistryService) GetApp(ctx context.Context, appName string) ([]*domain.Registration, error) {
	regs, err := s.repo.ListByApp(ctx, domain.NormalizeAppName(appName))
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	if len(regs) == 0 {
		return nil, fmt.Errorf("get app %s: %w", appName, domain.ErrAppNotFound)
	}
	return regs, nil
}

// GetAppInstance returns one instance, narrowed by app name.
func (s *RegistryService) GetAppInstance(ctx context.Context, appName, instanceID string) (*domain.Registration, error) {
	reg, err := s.repo.Find(ctx, domain.NormalizeAppName(appName), instanceID)
	if err != nil {
		return nil, fmt.Errorf("get app instance: %w", err)
	}
	return reg, nil
}

// GetInstance returns one instance by id alone.
func (s *RegistryService) GetInstance(ctx context.Context, instanceID string) (*domain.Registration, error) {
	reg, err := s.repo.FindByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return reg, nil
}

// GetByVIP returns the registrations grouped under a virtual IP
// address.
func (s *RegistryService) GetByVIP(ctx context.Context, vipAddress string) ([]*domain.Registration, error) {
	regs, err := s.repo.ListByVIP(ctx, vipAddress, false)
	if err != nil {
		return nil, fmt.Errorf("get by vip: %w", err)
	}
	return regs, nil
}

// GetBySVIP returns the registrations grouped under a secure virtual
// IP address.
func (s *RegistryService) GetBySVIP(ctx context.Context, svipAddress string) ([]*domain.Registration, error) {
	regs, err := s.repo.ListByVIP(ctx, svipAddress, true)
	if err != nil {
		return nil, fmt.Errorf("get by svip: %w", err)
	}
	return regs, nil
}

// IsNotFound reports whether err maps to a 404 at the transport
// layer.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrInstanceNotFound) || errors.Is(err, domain.ErrAppNotFound)
}
