package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	apiContext "crmhooks/internal/api/context"
	"crmhooks/internal/pkg/errors"
	"crmhooks/internal/platform/auth"
)

// RateLimiter is a per-caller token bucket refilled continuously over a minute.
type RateLimiter struct {
	store     *sync.Map // map[string]*bucket
	perMinute int
	now       func() time.Time
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 600
	}
	return &RateLimiter{
		store:     &sync.Map{},
		perMinute: perMinute,
		now:       time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	limit := float64(rl.perMinute)

	val, _ := rl.store.LoadOrStore(key, &bucket{tokens: limit, lastRefill: now})
	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(limit, b.tokens+elapsed*limit/60.0)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Cleanup drops buckets that have been idle, and therefore full, for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	now := rl.now()
	rl.store.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := now.Sub(b.lastRefill) > maxIdle
		b.mu.Unlock()
		if idle {
			rl.store.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(callerKey(r)) {
			w.Header().Set("Retry-After", "60")
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
			return
		}
		next(w, r)
	}
}

func callerKey(r *http.Request) string {
	if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok && claims != nil {
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
