// Package memory implements an in-process Profile Store. Used by tests and
// by the CLI when no durable driver is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// Store keeps deep copies of snapshots keyed by user id.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*progress.ProfileSnapshot
}

var (
	_ progress.ProfileStore    = (*Store)(nil)
	_ progress.ActivityHistory = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{profiles: make(map[string]*progress.ProfileSnapshot)}
}

// Create stores a new snapshot with version 1.
func (s *Store) Create(_ context.Context, snap *progress.ProfileSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[snap.UserID]; ok {
		return shared.ErrProfileAlreadyExists
	}

	snap.Version = 1
	s.profiles[snap.UserID] = snap.Clone()
	return nil
}

// Get returns a copy of the stored snapshot.
func (s *Store) Get(_ context.Context, userID string) (*progress.ProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return snap.Clone(), nil
}

// Save commits the snapshot if the stored version still equals snap.Version.
func (s *Store) Save(_ context.Context, snap *progress.ProfileSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[snap.UserID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	if current.Version != snap.Version {
		return shared.ErrProfileVersionStale
	}

	snap.Version++
	s.profiles[snap.UserID] = snap.Clone()
	return nil
}

// List returns user IDs ordered by id.
func (s *Store) List(_ context.Context, opts progress.ListOptions) ([]string, error) {
	if opts.Limit <= 0 {
		opts = progress.DefaultListOptions()
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)

	if opts.Offset >= len(ids) {
		return []string{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[opts.Offset:end], nil
}

// Delete removes a profile.
func (s *Store) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return shared.ErrProfileNotFound
	}
	delete(s.profiles, userID)
	return nil
}

// ListProcessed derives the audit trail from the stored activity log.
func (s *Store) ListProcessed(_ context.Context, userID string, limit int) ([]progress.ProcessedActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return progress.ProcessedActivities(snap, limit), nil
}
