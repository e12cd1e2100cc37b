// Package store persists small JSON documents (the signed-in user and the bearer
// token) across restarts of the storefront agent.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid store key")
)

// Well-known keys.
const (
	KeyUser         = "user"
	KeyToken        = "token"
	KeyReceiptEmail = "receipt_email"
)

const DefaultPrefix = "storefront:"

// Store defines the key-value operations the session and checkout need.
// Values are JSON documents; Delete removes all given keys in one operation.
type Store interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Keyspace turns caller keys into sanitized, prefixed storage keys.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: prefix}
}

// Key lower-cases and trims key, replaces anything outside [a-z0-9_.:-] with '_'
// and prepends the prefix.
func (k Keyspace) Key(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", ErrInvalidKey
	}
	var b strings.Builder
	b.Grow(len(k.prefix) + len(key))
	b.WriteString(k.prefix)
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String(), nil
}

func (k Keyspace) keys(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		sk, err := k.Key(key)
		if err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, nil
}
