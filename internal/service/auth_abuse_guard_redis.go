package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bumps every key of one attempt atomically and returns the longest delay.
var redisAuthAbuseBumpScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local base_ms = tonumber(ARGV[2])
local multiplier = tonumber(ARGV[3])
local max_ms = tonumber(ARGV[4])
local reset_ms = tonumber(ARGV[5])
local free_attempts = tonumber(ARGV[6])

local longest = 0
for _, key in ipairs(KEYS) do
  local fail_count = tonumber(redis.call("HGET", key, "fail_count") or "0")
  local last_failure_ms = tonumber(redis.call("HGET", key, "last_failure_ms") or "0")
  if last_failure_ms == 0 or (now_ms - last_failure_ms) > reset_ms then
    fail_count = 0
  end
  fail_count = fail_count + 1

  local delay = 0
  if fail_count > free_attempts then
    delay = math.min(math.floor(base_ms * (multiplier ^ (fail_count - free_attempts - 1))), max_ms)
  end
  redis.call("HSET", key, "fail_count", tostring(fail_count), "last_failure_ms", tostring(now_ms), "cooldown_until_ms", tostring(now_ms + delay))
  redis.call("PEXPIRE", key, reset_ms + delay + 60000)
  if delay > longest then
    longest = delay
  end
end
return longest
`)

type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
	now    func() time.Time
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "erp_identity"
	}
	return &RedisAuthAbuseGuard{
		client: client,
		prefix: prefix + ":auth_abuse",
		policy: normalizeAuthAbusePolicy(policy),
		now:    time.Now,
	}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, attempt AuthAttempt) (time.Duration, error) {
	keys := g.keys(attempt)
	cmds := make([]*redis.SliceCmd, len(keys))
	_, err := g.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HMGet(ctx, key, "last_failure_ms", "cooldown_until_ms")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	nowMS := g.now().UTC().UnixMilli()
	var longest time.Duration
	for _, cmd := range cmds {
		remaining, err := g.remainingCooldown(cmd.Val(), nowMS)
		if err != nil {
			return 0, err
		}
		longest = max(longest, remaining)
	}
	return longest, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, attempt AuthAttempt) (time.Duration, error) {
	result, err := redisAuthAbuseBumpScript.Run(
		ctx,
		g.client,
		g.keys(attempt),
		g.now().UTC().UnixMilli(),
		g.policy.BaseDelay.Milliseconds(),
		g.policy.Multiplier,
		g.policy.MaxDelay.Milliseconds(),
		g.policy.ResetWindow.Milliseconds(),
		g.policy.FreeAttempts,
	).Result()
	if err != nil {
		return 0, err
	}
	delayMS, err := parseAuthAbuseRedisInt64(result)
	if err != nil {
		return 0, err
	}
	return time.Duration(max(delayMS, 0)) * time.Millisecond, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, attempt AuthAttempt) error {
	return g.client.Del(ctx, g.keys(attempt)...).Err()
}

// remainingCooldown reads one HMGET reply; a missing hash means no cooldown.
func (g *RedisAuthAbuseGuard) remainingCooldown(values []any, nowMS int64) (time.Duration, error) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return 0, nil
	}
	lastFailureMS, err := parseAuthAbuseRedisInt64(values[0])
	if err != nil {
		return 0, err
	}
	cooldownUntilMS, err := parseAuthAbuseRedisInt64(values[1])
	if err != nil {
		return 0, err
	}
	if nowMS-lastFailureMS > g.policy.ResetWindow.Milliseconds() || cooldownUntilMS <= nowMS {
		return 0, nil
	}
	return time.Duration(cooldownUntilMS-nowMS) * time.Millisecond, nil
}

func (g *RedisAuthAbuseGuard) keys(attempt AuthAttempt) []string {
	dims := attempt.dimensions()
	keys := make([]string, 0, len(dims))
	for _, dim := range dims {
		keys = append(keys, fmt.Sprintf("%s:%s:%s:%s", g.prefix, attempt.Scope, dim.name, hashAbuseKey(dim.value)))
	}
	return keys
}

// Identities, IPs and challenge IDs never appear in Redis key names.
func hashAbuseKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}

func parseAuthAbuseRedisInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis response overflows int64")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse redis integer %q: %w", n, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
