// Package kvstore provides the namespaced key-value state store used for
// dedup markers, rate-limit counters, and decision tokens. The store is
// eventually consistent and offers per-key atomicity only; callers tolerate
// races on shared keys rather than relying on transactions.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no value exists under the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a string-to-string mapping with optional per-key TTL. A zero ttl
// on Put means the key does not expire.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
