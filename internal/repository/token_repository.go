package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked token ids (jti) in Redis.  Access and
// refresh tokens are never stored; only the id of a token revoked before
// its natural expiry is kept, and only for its remaining lifetime.
//
// A TokenDenylist with a nil client is disabled: Revoke is a no-op and
// IsRevoked always reports false.
type TokenDenylist struct {
	rdb    *redis.Client
	prefix string
}

// NewTokenDenylist returns a denylist storing keys under prefix.
func NewTokenDenylist(rdb *redis.Client, prefix string) *TokenDenylist {
	if prefix == "" {
		prefix = "rbac:revoked"
	}
	return &TokenDenylist{rdb: rdb, prefix: prefix}
}

// Enabled reports whether revocations are persisted.
func (d *TokenDenylist) Enabled() bool { return d != nil && d.rdb != nil }

func (d *TokenDenylist) key(jti string) string { return d.prefix + ":" + jti }

// Revoke marks jti as revoked for ttl.  Tokens that are already expired
// (ttl <= 0) need no entry.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if !d.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.key(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !d.Enabled() || jti == "" {
		return false, nil
	}
	err := d.rdb.Get(ctx, d.key(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
