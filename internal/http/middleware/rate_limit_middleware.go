package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

type fixedWindow struct {
	count       int
	windowStart time.Time
}

type localFixedWindowLimiter struct {
	mu      sync.Mutex
	store   map[string]*fixedWindow
	cleanup time.Time
	now     func() time.Time
}

type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
	backend string
}

func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{
		store:   make(map[string]*fixedWindow),
		cleanup: time.Now().Add(time.Minute),
		now:     time.Now,
	}
}

func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	return newRateLimiter(NewLocalFixedWindowLimiter(), limit, window, FailClosed, scope, "local")
}

// NewDistributedRateLimiter shares counters across replicas through the
// given backend; mode decides what happens when the backend errors.
func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string) *RateLimiter {
	return newRateLimiter(limiter, limit, window, mode, scope, "redis")
}

func newRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope, backend string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
		backend: backend,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rl.scope + ":" + ClientIP(r)
			decision, err := rl.limiter.Allow(ctx, key, rl.limit, rl.window)
			if err != nil {
				if rl.mode == FailOpen {
					slog.WarnContext(ctx, "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					observability.RecordRateLimitDecision(ctx, rl.scope, "backend_error_allow", rl.backend, "ip")
					next.ServeHTTP(w, r)
					return
				}
				observability.RecordRateLimitDecision(ctx, rl.scope, "backend_error_deny", rl.backend, "ip")
				observability.RecordRateLimitRetryAfter(ctx, rl.scope, "backend_error", rl.window)
				w.Header().Set("Retry-After", retryAfterHeader(rl.window))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			rl.setHeaders(w, decision)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(ctx, rl.scope, "deny", rl.backend, "ip")
				observability.RecordRateLimitRetryAfter(ctx, rl.scope, "window_exhausted", decision.RetryAfter)
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(ctx, rl.scope, "allow", rl.backend, "ip")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) setHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

func (rl *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, v := range rl.store {
			if now.Sub(v.windowStart) > 2*window {
				delete(rl.store, k)
			}
		}
		rl.cleanup = now.Add(window)
	}

	entry, ok := rl.store[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		rl.store[key] = &fixedWindow{count: 1, windowStart: now}
		return Decision{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}
	resetAt := entry.windowStart.Add(window)
	if entry.count >= limit {
		return Decision{Allowed: false, RetryAfter: max(resetAt.Sub(now), 0), ResetAt: resetAt}, nil
	}
	entry.count++
	return Decision{Allowed: true, Remaining: limit - entry.count, ResetAt: resetAt}, nil
}

// ClientIP is the request's remote host. RealIP upstream has already folded
// X-Forwarded-For into RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
