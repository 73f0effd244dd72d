package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds credential attempts per client address.
type RateLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig allows 10 attempts a minute with a burst of 5.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(10.0 / 60.0),
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	config  RateLimiterConfig
	nowFunc func() time.Time

	lock     sync.RWMutex
	limiters map[string]*clientLimiter
}

func NewRateLimiter(config RateLimiterConfig, nowFunc func() time.Time) *RateLimiter {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &RateLimiter{
		config:   config,
		nowFunc:  nowFunc,
		limiters: make(map[string]*clientLimiter),
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientAddress(r)
		if !rl.getOrCreate(key).AllowN(rl.nowFunc(), 1) {
			log.Warn().Str("client", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			writeRateLimitResponse(w, rl.config.Rate)
			return
		}
		next(w, r)
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.lock.RLock()
	defer rl.lock.RUnlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) getOrCreate(key string) *rate.Limiter {
	now := rl.nowFunc()

	rl.lock.RLock()
	cl, exists := rl.limiters[key]
	rl.lock.RUnlock()
	if exists {
		rl.lock.Lock()
		cl.lastAccess = now
		rl.lock.Unlock()
		return cl.limiter
	}

	rl.lock.Lock()
	defer rl.lock.Unlock()
	if cl, exists := rl.limiters[key]; exists {
		cl.lastAccess = now
		return cl.limiter
	}
	limiter := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	rl.limiters[key] = &clientLimiter{limiter: limiter, lastAccess: now}
	return limiter
}

// Cleanup drops clients idle for more than twice the cleanup interval.
func (rl *RateLimiter) Cleanup() int {
	ttl := rl.config.CleanupInterval * 2
	now := rl.nowFunc()

	rl.lock.Lock()
	defer rl.lock.Unlock()
	removed := 0
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Code:    "rate_limit_exceeded",
		Message: "too many requests, retry later",
	})
}
