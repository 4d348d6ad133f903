package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
}

// tenantLimiter tracks a per-tenant rate limiter and when it was last seen.
// lastSeen is written by request goroutines and read by the cleanup loop.
type tenantLimiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

func (tl *tenantLimiter) touch() {
	tl.mu.Lock()
	tl.lastSeen = time.Now()
	tl.mu.Unlock()
}

func (tl *tenantLimiter) idleFor() time.Duration {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return time.Since(tl.lastSeen)
}

// RateLimiter returns an HTTP middleware that enforces a per-tenant
// token-bucket rate limit. Each tenant gets its own bucket, so one tenant
// exhausting its budget never throttles another. When the limit is exceeded,
// it responds with 429 Too Many Requests.
//
// Must run after the Tenant middleware; requests without a resolved tenant
// fall back to client IP keying.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var tenants sync.Map // map[string]*tenantLimiter

	// drop buckets for tenants idle longer than 10 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			tenants.Range(func(key, value any) bool {
				if value.(*tenantLimiter).idleFor() > 10*time.Minute {
					tenants.Delete(key)
				}
				return true
			})
		}
	}()

	getLimiter := func(key string) *rate.Limiter {
		v, ok := tenants.Load(key)
		if !ok {
			v, _ = tenants.LoadOrStore(key, &tenantLimiter{
				limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
				lastSeen: time.Now(),
			})
		}
		tl := v.(*tenantLimiter)
		tl.touch()
		return tl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := TenantFromContext(r.Context())
			if key == "" {
				key = clientIP(r)
			}
			limiter := getLimiter(key)

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0)
				return
			}

			delay := reservation.Delay()
			if delay > 0 {
				reservation.Cancel()
				retryAfter := int(delay.Seconds()) + 1
				writeTooManyRequests(w, retryAfter)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP address from the request, stripping the
// port. X-Forwarded-For is untrusted and ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    429,
		"message": "rate limit exceeded",
	})
}
