// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"

	"github.com/btouchard/eureka/internal/app/ports"
)

// StatsService exposes aggregated registry statistics for the admin
// endpoint.
type StatsService struct {
	reader ports.StatsReader
}

// NewStatsService creates a new StatsService.
func NewStatsService(reader ports.StatsReader) *StatsService {
	return &StatsService{reader: reader}
}

// Stats returns the current registry counters.
func (s *StatsService) Stats(ctx context.Context) (ports.RegistryStats, error) {
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return ports.RegistryStats{}, fmt.Errorf("registry stats: %w", err)
	}
	return stats, nil
}
