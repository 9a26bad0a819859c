package common

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing requests and tracks the exchange-reported
// request weight for the current window.
type RateLimiter struct {
	pacer         *rate.Limiter
	usedWeight    int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewRateLimiter creates a new rate limiter.
// limit: maximum weight allowed (e.g., 1200 for spot, 2400 for futures)
// resetInterval: time window (e.g., 1 minute)
// rps: client-side request pace
func NewRateLimiter(limit int, resetInterval time.Duration, rps float64, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		pacer:         rate.NewLimiter(rate.Limit(rps), burst),
		limit:         limit,
		resetInterval: resetInterval,
		lastReset:     time.Now(),
		logger:        logger,
	}
}

// Wait blocks until the next request may be sent. When the reported weight
// is close to the limit it also waits for the window to roll over.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.ShouldDelay() {
		rl.mu.RLock()
		remaining := rl.resetInterval - time.Since(rl.lastReset)
		rl.mu.RUnlock()
		if remaining > 0 {
			rl.logger.Warn("rate limit: holding requests until window reset", zap.Duration("wait", remaining))
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return rl.pacer.Wait(ctx)
}

// UpdateFromHeader updates the used weight from API response header.
func (rl *RateLimiter) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}

	weight, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastReset) >= rl.resetInterval {
		rl.usedWeight = 0
		rl.lastReset = time.Now()
	}

	rl.usedWeight = weight

	percentage := float64(rl.usedWeight) / float64(rl.limit) * 100
	if percentage >= 95 {
		rl.logger.Error("rate limit critical", zap.Int("used", rl.usedWeight), zap.Int("limit", rl.limit), zap.Float64("pct", percentage))
	} else if percentage >= 80 {
		rl.logger.Warn("rate limit warning", zap.Int("used", rl.usedWeight), zap.Int("limit", rl.limit), zap.Float64("pct", percentage))
	}
}

// GetUsage returns current usage information.
func (rl *RateLimiter) GetUsage() (used int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if time.Since(rl.lastReset) >= rl.resetInterval {
		return 0, rl.limit, 0
	}

	return rl.usedWeight, rl.limit, float64(rl.usedWeight) / float64(rl.limit) * 100
}

// ShouldDelay returns true if we should delay the next request.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= 90
}
