package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

type mockLimiter struct {
	allow bool
	retry time.Duration
	err   error
}

func (m mockLimiter) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{
		Allowed:    m.allow,
		RetryAfter: m.retry,
		ResetAt:    time.Now().Add(m.retry),
	}, m.err
}

type recordingLimiter struct {
	lastKey string
}

func (r *recordingLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	r.lastKey = key
	return Decision{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
}

func serveLimited(rl *RateLimiter, remoteAddr string) *httptest.ResponseRecorder {
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDistributedRateLimiterBackendErrors(t *testing.T) {
	open := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailOpen, "api")
	if rr := serveLimited(open, "10.0.0.1:1111"); rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open to allow request, got %d", rr.Code)
	}

	closed := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailClosed, "auth")
	rr := serveLimited(closed, "10.0.0.1:1111")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected fail-closed to reject request, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After of the full window, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimiterDeniedSetsHeaders(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{allow: false, retry: 5 * time.Second}, 1, time.Minute, FailClosed, "auth")
	rr := serveLimited(rl, "10.0.0.1:1111")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "5" {
		t.Fatalf("expected Retry-After=5, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}
	if _, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64); err != nil {
		t.Fatalf("expected numeric X-RateLimit-Reset, got %q", rr.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiterKeysByScopeAndHost(t *testing.T) {
	rec := &recordingLimiter{}
	rl := NewDistributedRateLimiter(rec, 5, time.Minute, FailClosed, "auth")
	if rr := serveLimited(rl, "203.0.113.7:4444"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rec.lastKey != "auth:203.0.113.7" {
		t.Fatalf("unexpected limiter key %q", rec.lastKey)
	}
}

func TestLocalFixedWindowLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewLocalFixedWindowLimiter().(*localFixedWindowLimiter)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 3 {
		d, _ := limiter.Allow(ctx, "auth:1.1.1.1", 3, time.Minute)
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: unexpected decision %+v", i, d)
		}
	}
	d, _ := limiter.Allow(ctx, "auth:1.1.1.1", 3, time.Minute)
	if d.Allowed || d.RetryAfter != time.Minute {
		t.Fatalf("expected fourth request denied with full retry, got %+v", d)
	}
	if d, _ := limiter.Allow(ctx, "auth:2.2.2.2", 3, time.Minute); !d.Allowed {
		t.Fatal("expected other client to have its own window")
	}

	now = now.Add(time.Minute)
	if d, _ := limiter.Allow(ctx, "auth:1.1.1.1", 3, time.Minute); !d.Allowed {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestNewRateLimiterEndToEnd(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, "auth")
	for i := range 2 {
		if rr := serveLimited(rl, "10.1.1.1:1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := serveLimited(rl, "10.1.1.1:2"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected third request from same host to be limited, got %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected host only, got %q", got)
	}
	req.RemoteAddr = "192.0.2.9"
	if got := ClientIP(req); got != "192.0.2.9" {
		t.Fatalf("expected bare address, got %q", got)
	}
}
