package users

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ListCache is the in-process cache of the enabled user list. It replaces
// ad hoc per-request caching with a single service owning both the data and
// its invalidation: every user create/update/delete must call Invalidate.
type ListCache struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*User
	list   []*User
	loaded bool
	repo   *Repository
}

func NewListCache(repo *Repository) *ListCache {
	return &ListCache{repo: repo}
}

func (c *ListCache) load(ctx context.Context) error {
	list, err := c.repo.ListEnabled(ctx)
	if err != nil {
		return err
	}

	byID := make(map[uuid.UUID]*User, len(list))
	for _, user := range list {
		byID[user.ID] = user
	}

	c.list = list
	c.byID = byID
	c.loaded = true
	return nil
}

func (c *ListCache) ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.load(ctx)
}

// List returns the cached enabled users, loading on first use.
func (c *ListCache) List(ctx context.Context) ([]*User, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*User, len(c.list))
	copy(out, c.list)
	return out, nil
}

// Get returns a cached user by id; ok is false when the user is not in the
// enabled list.
func (c *ListCache) Get(ctx context.Context, id uuid.UUID) (*User, bool, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.byID[id]
	return user, ok, nil
}

// DisplayName is the hot-path lookup for notification titles.
func (c *ListCache) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	user, ok, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return user.DisplayName, nil
}

// Invalidate drops the cached list; the next read reloads from storage.
func (c *ListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.list = nil
	c.byID = nil
}
