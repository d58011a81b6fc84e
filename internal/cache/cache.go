package cache

import (
	"context"
	"time"
)

type Cache interface {
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	// SetIfAbsent stores val only when key does not exist. It reports
	// whether this call stored it.
	SetIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error)
}

func RevokedTokenKey(jti string) string { return "auth:revoked:" + jti }
