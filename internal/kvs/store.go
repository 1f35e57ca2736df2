// Package kvs adapts a fast external key-value store (Redis) behind a typed,
// TTL-aware interface. It is the sole owner of ephemeral auth state: 2FA codes
// and sessions, failed-attempt counters, per-route rate limits, and the L2
// permission-resolution cache.
package kvs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvs: key not found")

// Key family prefixes, fixed per spec §4.2.
const (
	PrefixRefreshToken   = "rt:"
	PrefixTwoFactorCode  = "2fa:"
	PrefixTwoFactorSess  = "2fa_session:"
	PrefixAttempts       = "attempts:"
	PrefixRateLimit      = "rl:"
	PrefixAuthzL2        = "authz_l2:"
	PrefixAuthzVersion   = "authz_v:"
)

// Store is the typed contract every caller programs against; RedisStore and
// InMemoryStore both satisfy it.
type Store interface {
	// Get returns the value for key, or ErrNotFound if absent/expired.
	Get(ctx context.Context, key string) (string, error)
	// SetTTL stores value under key with the given expiry.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
	// IncrTTL atomically increments the integer counter at key, setting ttl only
	// the first time the key is created, and returns the new value.
	IncrTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// ScanPrefix enumerates keys under a prefix. Admin use only - not on any
	// request hot path.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}
