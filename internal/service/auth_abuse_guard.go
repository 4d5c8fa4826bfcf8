package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
)

type AuthAbuseScope string

const (
	AuthAbuseScopeLogin     AuthAbuseScope = "login"
	AuthAbuseScopeOTPVerify AuthAbuseScope = "otp_verify"
)

type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func AuthAbusePolicyFromConfig(cfg *config.Config) AuthAbusePolicy {
	return AuthAbusePolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   cfg.AuthAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
}

// AuthAttempt names what a failed attempt is charged against. Identity and
// client IP always count; OTP verification is also charged to the challenge
// being guessed, so rotating IPs against one code still backs off.
type AuthAttempt struct {
	Scope       AuthAbuseScope
	Identity    string
	IP          string
	ChallengeID string
}

type abuseDimension struct {
	name  string
	value string
}

func (a AuthAttempt) dimensions() []abuseDimension {
	dims := []abuseDimension{
		{name: "id", value: normalizeAuthIdentity(a.Identity)},
		{name: "ip", value: normalizeAuthIP(a.IP)},
	}
	if a.Scope == AuthAbuseScopeOTPVerify {
		if challenge := strings.TrimSpace(a.ChallengeID); challenge != "" {
			dims = append(dims, abuseDimension{name: "challenge", value: challenge})
		}
	}
	return dims
}

// AuthAbuseGuard slows repeated failures down. It only ever returns a
// cooldown; accounts are never locked.
type AuthAbuseGuard interface {
	Check(ctx context.Context, attempt AuthAttempt) (time.Duration, error)
	RegisterFailure(ctx context.Context, attempt AuthAttempt) (time.Duration, error)
	Reset(ctx context.Context, attempt AuthAttempt) error
}

type NoopAuthAbuseGuard struct{}

func NewNoopAuthAbuseGuard() *NoopAuthAbuseGuard {
	return &NoopAuthAbuseGuard{}
}

func (g *NoopAuthAbuseGuard) Check(context.Context, AuthAttempt) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) RegisterFailure(context.Context, AuthAttempt) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) Reset(context.Context, AuthAttempt) error {
	return nil
}

type authAbuseEntry struct {
	FailCount     int
	LastFailureAt time.Time
	CooldownUntil time.Time
}

type InMemoryAuthAbuseGuard struct {
	mu     sync.Mutex
	policy AuthAbusePolicy
	data   map[string]authAbuseEntry
	now    func() time.Time
}

func NewInMemoryAuthAbuseGuard(policy AuthAbusePolicy) *InMemoryAuthAbuseGuard {
	return &InMemoryAuthAbuseGuard{
		policy: normalizeAuthAbusePolicy(policy),
		data:   make(map[string]authAbuseEntry),
		now:    time.Now,
	}
}

func (g *InMemoryAuthAbuseGuard) Check(_ context.Context, attempt AuthAttempt) (time.Duration, error) {
	now := g.now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	var longest time.Duration
	for _, dim := range attempt.dimensions() {
		longest = max(longest, g.activeCooldownLocked(now, abuseStateKey(attempt.Scope, dim)))
	}
	return longest, nil
}

func (g *InMemoryAuthAbuseGuard) RegisterFailure(_ context.Context, attempt AuthAttempt) (time.Duration, error) {
	now := g.now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	var longest time.Duration
	for _, dim := range attempt.dimensions() {
		longest = max(longest, g.bumpLocked(now, abuseStateKey(attempt.Scope, dim)))
	}
	return longest, nil
}

func (g *InMemoryAuthAbuseGuard) Reset(_ context.Context, attempt AuthAttempt) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dim := range attempt.dimensions() {
		delete(g.data, abuseStateKey(attempt.Scope, dim))
	}
	return nil
}

func (g *InMemoryAuthAbuseGuard) bumpLocked(now time.Time, key string) time.Duration {
	entry := g.data[key]
	if entry.LastFailureAt.IsZero() || now.Sub(entry.LastFailureAt) > g.policy.ResetWindow {
		entry.FailCount = 0
	}
	entry.FailCount++
	entry.LastFailureAt = now
	delay := g.policy.cooldownAfter(entry.FailCount)
	entry.CooldownUntil = now.Add(delay)
	g.data[key] = entry
	return delay
}

func (g *InMemoryAuthAbuseGuard) activeCooldownLocked(now time.Time, key string) time.Duration {
	entry, ok := g.data[key]
	if !ok {
		return 0
	}
	if now.Sub(entry.LastFailureAt) > g.policy.ResetWindow {
		delete(g.data, key)
		return 0
	}
	if now.After(entry.CooldownUntil) {
		return 0
	}
	return entry.CooldownUntil.Sub(now)
}

// cooldownAfter is the backoff owed after failCount consecutive failures.
func (p AuthAbusePolicy) cooldownAfter(failCount int) time.Duration {
	if failCount <= p.FreeAttempts {
		return 0
	}
	power := math.Pow(p.Multiplier, float64(failCount-p.FreeAttempts-1))
	return min(time.Duration(float64(p.BaseDelay)*power), p.MaxDelay)
}

func abuseStateKey(scope AuthAbuseScope, dim abuseDimension) string {
	return fmt.Sprintf("%s:%s:%s", scope, dim.name, dim.value)
}

func normalizeAuthIdentity(identity string) string {
	v := strings.TrimSpace(strings.ToLower(identity))
	if v == "" {
		return "anonymous"
	}
	return v
}

func normalizeAuthIP(ip string) string {
	v := strings.TrimSpace(strings.ToLower(ip))
	if v == "" {
		return "unknown"
	}
	return v
}

func normalizeAuthAbusePolicy(policy AuthAbusePolicy) AuthAbusePolicy {
	if policy.FreeAttempts < 0 {
		policy.FreeAttempts = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = 5 * time.Minute
	}
	if policy.ResetWindow <= 0 {
		policy.ResetWindow = 30 * time.Minute
	}
	return policy
}
