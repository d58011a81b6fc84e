package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sameboat/backend/internal/storage"
)

const StoreHost = "test-bucket.s3.us-east-1.amazonaws.com"

var ErrStoreDown = errors.New("object store unavailable")

type storedObject struct {
	Data        []byte
	ContentType string
}

// MemStore is a storage.Client over a map, addressed like an S3 bucket.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]storedObject

	// FailPuts and FailDeletes fail that many calls before succeeding;
	// a negative value fails forever.
	FailPuts    int
	FailDeletes int
	Puts        int
	Deletes     int
}

func NewMemStore() *MemStore {
	return &MemStore{objects: map[string]storedObject{}}
}

func (s *MemStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPuts != 0 {
		s.FailPuts--
		return "", ErrStoreDown
	}
	s.objects[key] = storedObject{Data: append([]byte(nil), data...), ContentType: contentType}
	s.Puts++
	return storage.BuildURL(StoreHost, key), nil
}

func (s *MemStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDeletes != 0 {
		s.FailDeletes--
		return ErrStoreDown
	}
	delete(s.objects, key)
	s.Deletes++
	return nil
}

func (s *MemStore) SignedGetURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return storage.BuildURL(StoreHost, key) + "?expires=" + ttl.String(), nil
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemStore) Object(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	return o.Data, o.ContentType, ok
}
