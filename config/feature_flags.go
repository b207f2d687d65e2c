package config

import (
	"errors"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Flag names. Flags gate side effects only: XP, levels and achievements are
// always computed and committed.
const (
	FeatureNotifyAchievement = "notify.achievement"
	FeatureNotifyLevelUp     = "notify.levelup"
	FeatureNotifyStreak      = "notify.streak"

	// FeatureEventsPublish publishes domain events after commit.
	FeatureEventsPublish = "events.publish"
	// FeatureCacheReads serves the first pipeline attempt from the snapshot cache.
	FeatureCacheReads = "cache.read_through"
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is one flag and its rollout. Rollout 0 is off, 100 is on for
// everyone, anything between selects a stable hash bucket of users.
type Feature struct {
	Name        string
	Description string
	Rollout     int
}

// Enabled reports whether the flag is on for anybody.
func (f Feature) Enabled() bool { return f.Rollout > 0 }

var defaultFeatures = []Feature{
	{FeatureNotifyAchievement, "Notify on unlocked achievements", 100},
	{FeatureNotifyLevelUp, "Notify on level up", 100},
	{FeatureNotifyStreak, "Notify on streak multiples of seven", 100},
	{FeatureEventsPublish, "Publish domain events after commit", 100},
	{FeatureCacheReads, "Read snapshots through the cache", 100},
}

// FeatureFlags is safe for concurrent use. A nil *FeatureFlags enables everything.
type FeatureFlags struct {
	mu        sync.RWMutex
	rollout   map[string]int
	about     map[string]string
	overrides map[string]map[string]bool // user -> flag -> on
}

// NewFeatureFlags returns the defaults.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		rollout:   make(map[string]int, len(defaultFeatures)),
		about:     make(map[string]string, len(defaultFeatures)),
		overrides: make(map[string]map[string]bool),
	}
	for _, f := range defaultFeatures {
		ff.rollout[f.Name] = f.Rollout
		ff.about[f.Name] = f.Description
	}
	return ff
}

// LoadFeatureFlags applies FEATURE_<NAME> variables over the defaults.
// The value is a bool or a rollout percentage, so FEATURE_NOTIFY_STREAK=false
// and FEATURE_NOTIFY_LEVELUP=50 are both valid. Unparseable values are ignored.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	for name := range ff.rollout {
		if p, ok := parseRollout(os.Getenv(envKey(name))); ok {
			ff.rollout[name] = p
		}
	}
	return ff
}

// envKey maps "cache.read_through" to "FEATURE_CACHE_READ_THROUGH".
func envKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

func parseRollout(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

// IsEnabled evaluates a flag for userID. User overrides win; an empty userID
// checks only whether the flag is on for anybody. Unknown flags are off.
func (ff *FeatureFlags) IsEnabled(name, userID string) bool {
	if ff == nil {
		return true
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if on, ok := ff.overrides[userID][name]; ok && userID != "" {
		return on
	}
	p, ok := ff.rollout[name]
	switch {
	case !ok || p == 0:
		return false
	case p >= 100 || userID == "":
		return true
	default:
		return bucket(name, userID) < p
	}
}

// bucket places a user in 0..99 per flag, stable across runs.
func bucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

func (ff *FeatureFlags) SetUserOverride(userID, name string, on bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.overrides[userID] == nil {
		ff.overrides[userID] = make(map[string]bool)
	}
	ff.overrides[userID][name] = on
}

func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, userID)
}

func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.rollout[name]; !ok {
		return ErrFeatureNotFound
	}
	ff.rollout[name] = percent
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.SetRolloutPercent(name, 100) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// All lists the flags sorted by name.
func (ff *FeatureFlags) All() []Feature {
	if ff == nil {
		return append([]Feature(nil), defaultFeatures...)
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.rollout))
	for name, p := range ff.rollout {
		out = append(out, Feature{Name: name, Description: ff.about[name], Rollout: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
