package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/utils"
)

type MemUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{users: map[string]models.User{}}
}

func (r *MemUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range r.users {
		if other.Email == u.Email || other.UserName == u.UserName {
			return utils.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &u, nil
}

func (r *MemUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *MemUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return utils.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *MemUserRepo) HasStaff(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.IsStaff {
			return true, nil
		}
	}
	return false, nil
}

// MemCache is a cache.Cache without expiry.
type MemCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemCache() *MemCache {
	return &MemCache{data: map[string][]byte{}}
}

func (c *MemCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *MemCache) SetIfAbsent(_ context.Context, key string, val any, _ time.Duration) (bool, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = b
	return true, nil
}

func (c *MemCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
