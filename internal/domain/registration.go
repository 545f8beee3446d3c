// SPDX-License-Identifier: AGPL-3.0-or-later

// Package domain holds the registry's entities: registrations, their
// leases and their statuses. No transport or persistence concerns
// leak in here.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the health status of a registered instance.
type Status string

const (
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusStarting     Status = "STARTING"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusUnknown      Status = "UNKNOWN"

	// StatusNone marks the absence of a status override.
	StatusNone Status = ""
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusDown, StatusStarting, StatusOutOfService, StatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Lease is the time-bounded liveness claim of one registration. The
// instance must renew before the duration elapses or the registry
// evicts it.
type Lease struct {
	DurationSecs        int
	RenewalIntervalSecs int
	RegisteredAt        time.Time
	LastRenewedAt       time.Time
}

// Expired reports whether the lease ran past its duration at now.
func (l Lease) Expired(now time.Time) bool {
	return now.Sub(l.LastRenewedAt) > time.Duration(l.DurationSecs)*time.Second
}

// NormalizeAppName maps an app name to its canonical registry form.
// Eureka treats app names case-insensitively and stores them
// upper-cased.
func NormalizeAppName(name string) string {
	return strings.ToUpper(name)
}

// Registration represents one application instance registered with
// the registry.
type Registration struct {
	InstanceID        string
	AppName           string // canonical, upper-cased
	Hostname          string
	IPAddr            string
	Port              int
	PortEnabled       bool
	SecurePort        int
	SecurePortEnabled bool
	VIPAddress        string
	SVIPAddress       string
	Status            Status
	Override          Status // StatusNone when no override is set
	Lease             Lease
	Metadata          map[string]any
	HealthCheckURL    string
	StatusPageURL     string
	HomePageURL       string
	LastUpdatedAt     time.Time
}

// NewRegistration creates a Registration with validation and a fresh
// lease. Zero lease parameters fall back to the Eureka defaults
// (90s duration, 30s renewal interval).
func NewRegistration(instanceID, appName string, leaseDurationSecs, renewalIntervalSecs int) (*Registration, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance id is required", ErrInvalidRegistration)
	}
	if appName == "" {
		return nil, fmt.Errorf("%w: app name is required", ErrInvalidRegistration)
	}
	if leaseDurationSecs < 0 || renewalIntervalSecs < 0 {
		return nil, fmt.Errorf("%w: negative lease parameters", ErrInvalidRegistration)
	}
	if leaseDurationSecs == 0 {
		leaseDurationSecs = 90
	}
	if renewalIntervalSecs == 0 {
		renewalIntervalSecs = 30
	}

	now := time.Now().UTC()
	return &Registration{
		InstanceID: instanceID,
		AppName:    NormalizeAppName(appName),
		Status:     StatusUp,
		Override:   StatusNone,
		Lease: Lease{
			DurationSecs:        leaseDurationSecs,
			RenewalIntervalSecs: renewalIntervalSecs,
			RegisteredAt:        now,
			LastRenewedAt:       now,
		},
		LastUpdatedAt: now,
	}, nil
}

// Renew extends the lease.
func (r *Registration) Renew(now time.Time) {
	r.Lease.LastRenewedAt = now
	r.LastUpdatedAt = now
}

// Expired reports whether the registration's lease lapsed at now.
func (r *Registration) Expired(now time.Time) bool {
	return r.Lease.Expired(now)
}

// SetOverride forces the effective status independently of the
// reported one.
func (r *Registration) SetOverride(status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	r.Override = status
	r.LastUpdatedAt = time.Now().UTC()
	return nil
}

// ClearOverride removes the override; the instance falls back to UP
// until its next status report, mirroring the Netflix server
// behaviour.
func (r *Registration) ClearOverride() {
	r.Override = StatusNone
	r.Status = StatusUp
	r.LastUpdatedAt = time.Now().UTC()
}

// EffectiveStatus is the status the registry advertises: the override
// when one is set, the reported status otherwise.
func (r *Registration) EffectiveStatus() Status {
	if r.Override != StatusNone {
		return r.Override
	}
	return r.Status
}

// SetMetadata sets one metadata key.
func (r *Registration) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	r.LastUpdatedAt = time.Now().UTC()
}
