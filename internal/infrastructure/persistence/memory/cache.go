package memory

import (
	"context"
	"sync"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

// Cache is an in-process progress.ProfileCache.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*progress.ProfileSnapshot
}

var _ progress.ProfileCache = (*Cache)(nil)

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*progress.ProfileSnapshot)}
}

// Get returns a copy of the cached snapshot.
func (c *Cache) Get(_ context.Context, userID string) (*progress.ProfileSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.items[userID]
	if !ok {
		return nil, false, nil
	}
	return snap.Clone(), true, nil
}

// Set stores a copy of snap.
func (c *Cache) Set(_ context.Context, snap *progress.ProfileSnapshot) error {
	if snap == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[snap.UserID] = snap.Clone()
	return nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
