// SPDX-License-Identifier: AGPL-3.0-or-later

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btouchard/eureka/internal/app/ports"
	"github.com/btouchard/eureka/internal/domain"
)

// RegistrationRepository implements ports.RegistrationRepository and
// ports.StatsReader for PostgreSQL. Metadata is stored as JSONB.
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `
	instance_id, app_name, hostname, ip_addr,
	port, port_enabled, secure_port, secure_port_enabled,
	vip_address, svip_address, status, override_status,
	lease_duration_secs, renewal_interval_secs, registered_at, last_renewed_at,
	metadata, health_check_url, status_page_url, home_page_url, last_updated_at`

// Save persists a registration (insert or update).
func (r *RegistrationRepository) Save(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (instance_id) DO UPDATE
		SET app_name = EXCLUDED.app_name,
			hostname = EXCLUDED.hostname,
			ip_addr = EXCLUDED.ip_addr,
			port = EXCLUDED.port,
			port_enabled = EXCLUDED.port_enabled,
			secure_port = EXCLUDED.secure_port,
			secure_port_enabled = EXCLUDED.secure_port_enabled,
			vip_address = EXCLUDED.vip_address,
			svip_address = EXCLUDED.svip_address,
			status = EXCLUDED.status,
			override_status = EXCLUDED.override_status,
			lease_duration_secs = EXCLUDED.lease_duration_secs,
			renewal_interval_secs = EXCLUDED.renewal_interval_secs,
			registered_at = EXCLUDED.registered_at,
			last_renewed_at = EXCLUDED.last_renewed_at,
			metadata = EXCLUDED.metadata,
			health_check_url = EXCLUDED.health_check_url,
			status_page_url = EXCLUDED.status_page_url,
			home_page_url = EXCLUDED.home_page_url,
			last_updated_at = EXCLUDED.last_updated_at
	`

	metadata, err := json.Marshal(reg.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", reg.InstanceID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		reg.InstanceID,
		reg.AppName,
		reg.Hostname,
		reg.IPAddr,
		reg.Port,
		reg.PortEnabled,
		reg.SecurePort,
		reg.SecurePortEnabled,
		reg.VIPAddress,
		reg.SVIPAddress,
		string(reg.Status),
		string(reg.Override),
		reg.Lease.DurationSecs,
		reg.Lease.RenewalIntervalSecs,
		reg.Lease.RegisteredAt,
		reg.Lease.LastRenewedAt,
		metadata,
		reg.HealthCheckURL,
		reg.StatusPageURL,
		reg.HomePageURL,
		reg.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save registration %s: %w", reg.InstanceID, err)
	}
	return nil
}

// Find retrieves a registration by app name and instance ID.
func (r *RegistrationRepository) Find(ctx context.Context, appName, instanceID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE app_name = $1 AND instance_id = $2`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, appName, instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("find registration %s/%s: %w", appName, instanceID, err)
	}
	return reg, nil
}

// FindByInstanceID retrieves a registration by instance ID alone.
func (r *RegistrationRepository) FindByInstanceID(ctx context.Context, instanceID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE instance_id = $1`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("find registration %s: %w", instanceID, err)
	}
	return reg, nil
}

// Delete removes a registration.
func (r *RegistrationRepository) Delete(ctx context.Context, appName, instanceID string) error {
	query := `DELETE FROM registrations WHERE app_name = $1 AND instance_id = $2`
	result, err := r.db.ExecContext(ctx, query, appName, instanceID)
	if err != nil {
		return fmt.Errorf("delete registration %s/%s: %w", appName, instanceID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

// ListAll returns every registration.
func (r *RegistrationRepository) ListAll(ctx context.Context) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY app_name, instance_id`
	return r.list(ctx, query)
}

// ListByApp returns the registrations of one app.
func (r *RegistrationRepository) ListByApp(ctx context.Context, appName string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE app_name = $1 ORDER BY instance_id`
	return r.list(ctx, query, appName)
}

// ListByVIP returns the registrations grouped under a (secure)
// virtual IP address.
func (r *RegistrationRepository) ListByVIP(ctx context.Context, vipAddress string, secure bool) ([]*domain.Registration, error) {
	column := "vip_address"
	if secure {
		column = "svip_address"
	}
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE ` + column + ` = $1 ORDER BY instance_id`
	return r.list(ctx, query, vipAddress)
}

// DeleteExpired removes every registration whose lease lapsed at now.
func (r *RegistrationRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		DELETE FROM registrations
		WHERE last_renewed_at + make_interval(secs => lease_duration_secs) < $1
		RETURNING instance_id
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired registrations: %w", err)
	}
	defer rows.Close()

	var evicted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan evicted instance id: %w", err)
		}
		evicted = append(evicted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evicted rows: %w", err)
	}
	return evicted, nil
}

// Stats returns aggregated registry statistics. The effective status
// is the override when set, the reported status otherwise.
func (r *RegistrationRepository) Stats(ctx context.Context) (ports.RegistryStats, error) {
	stats := ports.RegistryStats{ByStatus: make(map[string]int)}

	countQuery := `SELECT COUNT(DISTINCT app_name), COUNT(*) FROM registrations`
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&stats.Apps, &stats.Instances); err != nil {
		return ports.RegistryStats{}, fmt.Errorf("count registrations: %w", err)
	}

	statusQuery := `
		SELECT COALESCE(NULLIF(override_status, ''), status) AS effective, COUNT(*)
		FROM registrations
		GROUP BY effective
	`
	rows, err := r.db.QueryContext(ctx, statusQuery)
	if err != nil {
		return ports.RegistryStats{}, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return ports.RegistryStats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return ports.RegistryStats{}, fmt.Errorf("iterate status counts: %w", err)
	}
	return stats, nil
}

func (r *RegistrationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*domain.Registration, error) {
	var reg domain.Registration
	var status, override string
	var metadata []byte

	err := row.Scan(
		&reg.InstanceID,
		&reg.AppName,
		&reg.Hostname,
		&reg.IPAddr,
		&reg.Port,
		&reg.PortEnabled,
		&reg.SecurePort,
		&reg.SecurePortEnabled,
		&reg.VIPAddress,
		&reg.SVIPAddress,
		&status,
		&override,
		&reg.Lease.DurationSecs,
		&reg.Lease.RenewalIntervalSecs,
		&reg.Lease.RegisteredAt,
		&reg.Lease.LastRenewedAt,
		&metadata,
		&reg.HealthCheckURL,
		&reg.StatusPageURL,
		&reg.HomePageURL,
		&reg.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Reconstruct value objects (already validated in DB)
	reg.Status = domain.Status(status)
	reg.Override = domain.Status(override)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &reg.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &reg, nil
}
