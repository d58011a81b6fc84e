package storage

import (
	"context"
	"time"
)

// ObjectStore is a remote blob store. Implementations keep no local state.
type ObjectStore interface {
	// Put uploads data under key and returns the object's public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type Signer interface {
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
