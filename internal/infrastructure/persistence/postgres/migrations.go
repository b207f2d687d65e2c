package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progress profiles
-- Version: 001

-- One row per user; the snapshot column is the source of truth.
-- experience_points and level are denormalised for reporting queries.
CREATE TABLE IF NOT EXISTS progress_profiles (
    user_id VARCHAR(128) PRIMARY KEY,
    version BIGINT NOT NULL DEFAULT 1,
    experience_points BIGINT NOT NULL DEFAULT 0,
    level SMALLINT NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    snapshot JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_version CHECK (version >= 1),
    CONSTRAINT valid_xp CHECK (experience_points >= 0),
    CONSTRAINT valid_level CHECK (level BETWEEN 1 AND 10)
);

CREATE INDEX IF NOT EXISTS idx_progress_profiles_xp ON progress_profiles(experience_points DESC);
CREATE INDEX IF NOT EXISTS idx_progress_profiles_updated_at ON progress_profiles(updated_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS progress_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROCESSED ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Audit trail of committed activities
-- Version: 002

CREATE TABLE IF NOT EXISTS processed_activities (
    user_id VARCHAR(128) NOT NULL REFERENCES progress_profiles(user_id) ON DELETE CASCADE,
    activity_id VARCHAR(128) NOT NULL,
    kind VARCHAR(40) NOT NULL,
    xp_awarded INTEGER NOT NULL,
    processed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, activity_id),
    CONSTRAINT valid_xp_awarded CHECK (xp_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_processed_activities_user_date
    ON processed_activities(user_id, processed_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS processed_activities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE EARNED ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Earned achievements projection
-- Version: 003

CREATE TABLE IF NOT EXISTS earned_achievements (
    user_id VARCHAR(128) NOT NULL REFERENCES progress_profiles(user_id) ON DELETE CASCADE,
    achievement_id VARCHAR(64) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_earned_achievements_id ON earned_achievements(achievement_id);
`

const migration003Down = `
DROP TABLE IF EXISTS earned_achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_progress_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_processed_activities",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_earned_achievements",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// migrationLockKey serialises concurrent migrators (two CLI runs with
// DB_AUTO_MIGRATE, for example) through a transaction-scoped advisory lock.
const migrationLockKey int64 = 0x6d656e746f72 // "mentor"

// Migration is one schema step. AppliedAt and IsApplied are filled by Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over GetMigrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

func (m *Migrator) ensureTable(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context, q Querier) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema_migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		out[version] = at
	}
	return out, rows.Err()
}

// locked runs fn in one transaction holding the migration lock.
func (m *Migrator) locked(ctx context.Context, fn func(tx pgx.Tx, applied map[int]time.Time) error) error {
	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("%w: lock: %v", ErrMigrationFailed, err)
		}
		if err := m.ensureTable(ctx, tx); err != nil {
			return err
		}
		applied, err := m.applied(ctx, tx)
		if err != nil {
			return err
		}
		return fn(tx, applied)
	})
}

// Migrate applies every pending migration in version order, all or nothing.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("%w: record %03d: %v", ErrMigrationFailed, mig.Version, err)
			}
		}
		return nil
	})
}

// Rollback reverts the most recently applied migration. No-op when none is applied.
func (m *Migrator) Rollback(ctx context.Context) error {
	return m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for i := len(m.migrations) - 1; i >= 0; i-- {
			mig := m.migrations[i]
			if _, ok := applied[mig.Version]; !ok {
				continue
			}
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return fmt.Errorf("%w: revert %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		}
		return nil
	})
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	var out []Migration
	err := m.locked(ctx, func(_ pgx.Tx, applied map[int]time.Time) error {
		out = make([]Migration, len(m.migrations))
		copy(out, m.migrations)
		for i := range out {
			if at, ok := applied[out[i].Version]; ok {
				out[i].IsApplied = true
				out[i].AppliedAt = at
			}
		}
		return nil
	})
	return out, err
}
