package redis

import (
	"context"
	"errors"
	"time"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

// ProfileCache implements progress.ProfileCache using the generic Redis Cache.
// The stored JSON carries Version so a cached snapshot can still be committed
// through the store's compare-and-swap.
type ProfileCache struct {
	cache *Cache
	ttl   time.Duration
}

var _ progress.ProfileCache = (*ProfileCache)(nil)

// NewProfileCache creates a new ProfileCache. A non-positive ttl uses TTLProfileSnapshot.
func NewProfileCache(cache *Cache, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = TTLProfileSnapshot
	}
	return &ProfileCache{cache: cache, ttl: ttl}
}

// Get returns a cached snapshot; ok is false on a miss.
func (p *ProfileCache) Get(ctx context.Context, userID string) (*progress.ProfileSnapshot, bool, error) {
	var snap progress.ProfileSnapshot
	if err := p.cache.Get(ctx, ProfileKey(userID), &snap); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if snap.SkillProgress == nil {
		snap.SkillProgress = make(map[string]progress.SkillLevel)
	}
	return &snap, true, nil
}

// Set stores a snapshot.
func (p *ProfileCache) Set(ctx context.Context, snap *progress.ProfileSnapshot) error {
	if snap == nil {
		return nil
	}
	return p.cache.Set(ctx, ProfileKey(snap.UserID), snap, p.ttl)
}

// Invalidate removes a snapshot.
func (p *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return p.cache.Delete(ctx, ProfileKey(userID))
}

// ProfileKey returns the cache key for a user's snapshot.
func ProfileKey(userID string) string {
	return PrefixProfile + userID
}
