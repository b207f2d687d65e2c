// Package sqlite implements an embedded Profile Store for local and CLI use.
// It mirrors the postgres schema with TEXT timestamps and a JSON snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress_profiles (
    user_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    experience_points INTEGER NOT NULL,
    level INTEGER NOT NULL,
    snapshot TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_activities (
    user_id TEXT NOT NULL REFERENCES progress_profiles(user_id) ON DELETE CASCADE,
    activity_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    xp_awarded INTEGER NOT NULL,
    processed_at TEXT NOT NULL,
    PRIMARY KEY (user_id, activity_id)
);
`

// Store implements progress.ProfileStore on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ progress.ProfileStore    = (*Store)(nil)
	_ progress.ActivityHistory = (*Store)(nil)
)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// One writer; also keeps a ":memory:" database on a single connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: init: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new profile with version 1.
func (s *Store) Create(ctx context.Context, snap *progress.ProfileSnapshot) error {
	snap.Version = 1
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sqlite: create: marshal: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM progress_profiles WHERE user_id = ?)`, snap.UserID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: create: lookup: %w", err)
		}
		if exists {
			return shared.ErrProfileAlreadyExists
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO progress_profiles (user_id, version, experience_points, level, snapshot, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snap.UserID, snap.Version, int64(snap.ExperiencePoints), snap.Level, string(data),
			formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt),
		); err != nil {
			return fmt.Errorf("sqlite: create: insert: %w", err)
		}

		return writeActivities(ctx, tx, snap.UserID, snap.ActivityLog)
	})
}

// Get returns the snapshot for a user.
func (s *Store) Get(ctx context.Context, userID string) (*progress.ProfileSnapshot, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, snapshot FROM progress_profiles WHERE user_id = ?`, userID,
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}

	var snap progress.ProfileSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("sqlite: get: unmarshal: %w", err)
	}
	snap.Version = version
	if snap.SkillProgress == nil {
		snap.SkillProgress = make(map[string]progress.SkillLevel)
	}
	return &snap, nil
}

// Save commits the snapshot if the stored version still equals snap.Version.
func (s *Store) Save(ctx context.Context, snap *progress.ProfileSnapshot) error {
	expected := snap.Version
	next := *snap
	next.Version = expected + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("sqlite: save: marshal: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE progress_profiles
			SET version = ?, experience_points = ?, level = ?, snapshot = ?, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			next.Version, int64(next.ExperiencePoints), next.Level, string(data),
			formatTime(next.UpdatedAt), next.UserID, expected,
		)
		if err != nil {
			return fmt.Errorf("sqlite: save: update: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: save: rows: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM progress_profiles WHERE user_id = ?)`, next.UserID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("sqlite: save: lookup: %w", err)
			}
			if !exists {
				return shared.ErrProfileNotFound
			}
			return shared.ErrProfileVersionStale
		}

		var stored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM processed_activities WHERE user_id = ?`, next.UserID,
		).Scan(&stored); err != nil {
			return fmt.Errorf("sqlite: save: count activities: %w", err)
		}
		return writeActivities(ctx, tx, next.UserID, logTail(next.ActivityLog, stored))
	})
	if err != nil {
		return err
	}

	snap.Version = next.Version
	return nil
}

// List returns user IDs ordered by id.
func (s *Store) List(ctx context.Context, opts progress.ListOptions) ([]string, error) {
	if opts.Limit <= 0 {
		opts = progress.DefaultListOptions()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM progress_profiles ORDER BY user_id LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: list: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a profile and its activity rows.
func (s *Store) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM progress_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete: rows: %w", err)
	}
	if n == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// ListProcessed returns committed activities for a user, newest first.
func (s *Store) ListProcessed(ctx context.Context, userID string, limit int) ([]progress.ProcessedActivity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_id, kind, xp_awarded, processed_at
		FROM processed_activities
		WHERE user_id = ?
		ORDER BY processed_at DESC, activity_id
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list processed: %w", err)
	}
	defer rows.Close()

	var out []progress.ProcessedActivity
	for rows.Next() {
		var (
			pa   progress.ProcessedActivity
			kind string
			xp   int64
			at   string
		)
		if err := rows.Scan(&pa.ActivityID, &kind, &xp, &at); err != nil {
			return nil, fmt.Errorf("sqlite: list processed: scan: %w", err)
		}
		pa.UserID = userID
		pa.Kind = progress.ActivityKind(kind)
		pa.XPAwarded = progress.XP(xp)
		if pa.ProcessedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("sqlite: list processed: time: %w", err)
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// logTail returns the entries past the first stored ones. The log only
// grows, so the projected row count marks where the new entries start.
func logTail[E any](log []E, stored int) []E {
	if stored >= len(log) {
		return nil
	}
	return log[max(stored, 0):]
}

func writeActivities(ctx context.Context, tx *sql.Tx, userID string, entries []progress.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO processed_activities (user_id, activity_id, kind, xp_awarded, processed_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare activity insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, userID, e.ID, string(e.Kind), int64(e.XPAwarded), formatTime(e.CompletedAt)); err != nil {
			return fmt.Errorf("sqlite: insert activity %s: %w", e.ID, err)
		}
	}
	return nil
}

// Fixed-width UTC so TEXT columns sort in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
