// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the registry server configuration from
// environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the registry server configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// DatabaseURL is the PostgreSQL connection string. Empty means
	// the in-memory repository.
	DatabaseURL string

	// EvictionInterval is how often expired leases are swept.
	EvictionInterval time.Duration

	RateLimit RateLimitConfig
}

// Load reads the full configuration from the environment.
func Load() Config {
	return Config{
		ListenAddr:       getEnv("EUREKA_LISTEN_ADDR", ":8761"),
		DatabaseURL:      getEnv("EUREKA_DATABASE_URL", ""),
		EvictionInterval: getEnvDuration("EUREKA_EVICTION_INTERVAL", 30*time.Second),
		RateLimit:        LoadRateLimitConfig(),
	}
}

// RateLimitRouteConfig holds configuration for a specific route type
type RateLimitRouteConfig struct {
	Requests int
	Period   time.Duration
	Burst    int
}

// RateLimitConfig holds all rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool
	CleanupInterval time.Duration

	Lifecycle RateLimitRouteConfig
	Query     RateLimitRouteConfig
	Admin     RateLimitRouteConfig
}

// LoadRateLimitConfig loads rate limiting configuration from environment variables
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         getEnvBool("EUREKA_RATELIMIT_ENABLED", true),
		CleanupInterval: getEnvDuration("EUREKA_RATELIMIT_CLEANUP_INTERVAL", 10*time.Minute),

		// Lifecycle covers register/renew/deregister. A client
		// heartbeating every 30s plus occasional re-registration
		// fits well inside 120/min.
		Lifecycle: RateLimitRouteConfig{
			Requests: getEnvInt("EUREKA_RATELIMIT_LIFECYCLE_REQUESTS", 120),
			Period:   getEnvDuration("EUREKA_RATELIMIT_LIFECYCLE_PERIOD", time.Minute),
			Burst:    getEnvInt("EUREKA_RATELIMIT_LIFECYCLE_BURST", 30),
		},
		Query: RateLimitRouteConfig{
			Requests: getEnvInt("EUREKA_RATELIMIT_QUERY_REQUESTS", 300),
			Period:   getEnvDuration("EUREKA_RATELIMIT_QUERY_PERIOD", time.Minute),
			Burst:    getEnvInt("EUREKA_RATELIMIT_QUERY_BURST", 60),
		},
		Admin: RateLimitRouteConfig{
			Requests: getEnvInt("EUREKA_RATELIMIT_ADMIN_REQUESTS", 60),
			Period:   getEnvDuration("EUREKA_RATELIMIT_ADMIN_PERIOD", time.Minute),
			Burst:    getEnvInt("EUREKA_RATELIMIT_ADMIN_BURST", 20),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
