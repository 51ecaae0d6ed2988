package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware sets headers suitable for a JSON API.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// LimitBodyMiddleware rejects bodies larger than MaxBodyBytes.
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	cleanup  time.Duration
}

// NewRateLimiter allows n requests per window per key, with bursts up to n.
// Idle keys are forgotten after twice the window.
func NewRateLimiter(n int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     n,
		window:   window,
		cleanup:  2 * window,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		every := rate.Every(rl.window / time.Duration(rl.rate))
		v = &visitor{limiter: rate.NewLimiter(every, rl.rate)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > rl.cleanup {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitConfig picks a limiter per route class.
type RateLimitConfig struct {
	// ReportLimiter applies to filing reports.
	ReportLimiter *RateLimiter
	// APILimiter applies to every other /api route.
	APILimiter *RateLimiter
	// GlobalLimiter applies to everything else.
	GlobalLimiter *RateLimiter
}

// DefaultRateLimitConfig returns production limits.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		ReportLimiter: NewRateLimiter(10, time.Minute),
		APILimiter:    NewRateLimiter(120, time.Minute),
		GlobalLimiter: NewRateLimiter(300, time.Minute),
	}
}

// RateLimitMiddleware throttles by caller: the gateway user id when present,
// the client IP otherwise.
func RateLimitMiddleware(config *RateLimitConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if key == "" {
				key = "ip:" + GetClientIP(r)
			}

			limiter := config.GlobalLimiter
			switch {
			case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/report/"):
				limiter = config.ReportLimiter
			case strings.HasPrefix(r.URL.Path, "/api/"):
				limiter = config.APILimiter
			}

			if limiter != nil && !limiter.Allow(key) {
				log.Warn().Str("key", key).Str("path", r.URL.Path).Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"status":"error","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
