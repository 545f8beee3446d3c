// SPDX-License-Identifier: AGPL-3.0-or-later

// Package middleware provides HTTP middleware for the registry server.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/btouchard/eureka/internal/config"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // Unix nano timestamp for thread-safe access
}

// RateLimiter applies per-client-IP token buckets to the registry
// endpoints. Lifecycle traffic (register, renew, deregister) and read
// traffic get separate budgets: a heartbeating fleet must never starve
// out discovery queries, and vice versa.
type RateLimiter struct {
	config config.RateLimitConfig

	lifecycleLimiters sync.Map // IP -> limiterEntry (register/renew/deregister)
	queryLimiters     sync.Map // IP -> limiterEntry (discovery queries)
	adminLimiters     sync.Map // IP -> limiterEntry (admin)

	logger *slog.Logger

	stopCleanup chan struct{}
}

// NewRateLimiter creates a rate limiter from the given configuration.
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		config:      cfg,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	threshold := time.Now().Add(-rl.config.CleanupInterval * 2).UnixNano()

	cleanupMap := func(m *sync.Map) int {
		count := 0
		m.Range(func(key, value interface{}) bool {
			if entry, ok := value.(*limiterEntry); ok {
				if entry.lastSeen.Load() < threshold {
					m.Delete(key)
					count++
				}
			}
			return true
		})
		return count
	}

	lifecycleCount := cleanupMap(&rl.lifecycleLimiters)
	queryCount := cleanupMap(&rl.queryLimiters)
	adminCount := cleanupMap(&rl.adminLimiters)

	total := lifecycleCount + queryCount + adminCount
	if total > 0 {
		rl.logger.Debug("rate limiter cleanup",
			"removed", total,
			"lifecycle", lifecycleCount,
			"query", queryCount,
			"admin", adminCount,
		)
	}
}

func (rl *RateLimiter) getLimiter(store *sync.Map, key string, cfg config.RateLimitRouteConfig) *rate.Limiter {
	nowNano := time.Now().UnixNano()
	rateLimit := rate.Limit(float64(cfg.Requests) / cfg.Period.Seconds())

	if existing, ok := store.Load(key); ok {
		entry := existing.(*limiterEntry)
		entry.lastSeen.Store(nowNano)
		return entry.limiter
	}

	limiter := rate.NewLimiter(rateLimit, cfg.Burst)
	entry := &limiterEntry{
		limiter: limiter,
	}
	entry.lastSeen.Store(nowNano)

	actual, _ := store.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		xff = strings.TrimSpace(xff)
		if xff != "" {
			return xff
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeRateLimitHeaders(w http.ResponseWriter, limiter *rate.Limiter, cfg config.RateLimitRouteConfig) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))

	tokens := int(limiter.Tokens())
	if tokens < 0 {
		tokens = 0
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tokens))

	resetTime := time.Now().Add(cfg.Period).Unix()
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
}

func writeTooManyRequests(w http.ResponseWriter, limiter *rate.Limiter, cfg config.RateLimitRouteConfig) {
	writeRateLimitHeaders(w, limiter, cfg)

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	retryAfter := int(delay.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
}

func (rl *RateLimiter) limit(store *sync.Map, cfg config.RateLimitRouteConfig, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next(w, r)
			return
		}

		ip := getClientIP(r)
		limiter := rl.getLimiter(store, ip, cfg)

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeTooManyRequests(w, limiter, cfg)
			return
		}

		writeRateLimitHeaders(w, limiter, cfg)
		next(w, r)
	}
}

// LifecycleMiddleware limits register/renew/deregister traffic per
// client IP.
func (rl *RateLimiter) LifecycleMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return rl.limit(&rl.lifecycleLimiters, rl.config.Lifecycle, next)
}

// QueryMiddleware limits discovery queries per client IP.
func (rl *RateLimiter) QueryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return rl.limit(&rl.queryLimiters, rl.config.Query, next)
}

// AdminMiddleware limits admin endpoint traffic per client IP.
func (rl *RateLimiter) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return rl.limit(&rl.adminLimiters, rl.config.Admin, next)
}
