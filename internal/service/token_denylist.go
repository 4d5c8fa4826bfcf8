package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records access token IDs (jti) that must be rejected before
// their natural expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type NoopTokenDenylist struct{}

func NewNoopTokenDenylist() *NoopTokenDenylist { return &NoopTokenDenylist{} }

func (NoopTokenDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (NoopTokenDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

type InMemoryTokenDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryTokenDenylist() *InMemoryTokenDenylist {
	return &InMemoryTokenDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *InMemoryTokenDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	now := d.now()
	if !until.After(now) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, id)
		}
	}
	d.entries[tokenID] = until
	return nil
}

func (d *InMemoryTokenDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !exp.After(d.now()) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

type RedisTokenDenylist struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenDenylist(client redis.UniversalClient, prefix string) *RedisTokenDenylist {
	if prefix == "" {
		prefix = "erp_identity"
	}
	return &RedisTokenDenylist{client: client, prefix: prefix + ":access_denylist"}
}

// Revoke stores the jti with a TTL equal to the token's remaining lifetime,
// so the set never outgrows the population of live tokens.
func (d *RedisTokenDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(tokenID), "1", ttl).Err()
}

func (d *RedisTokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisTokenDenylist) key(tokenID string) string {
	return d.prefix + ":" + tokenID
}
