package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements progress.ProfileStore and progress.ActivityHistory.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

var (
	_ progress.ProfileStore    = (*ProfileRepository)(nil)
	_ progress.ActivityHistory = (*ProfileRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new profile with version 1.
func (r *ProfileRepository) Create(ctx context.Context, snap *progress.ProfileSnapshot) error {
	snap.Version = 1
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO progress_profiles (
			user_id, version, experience_points, level, current_streak,
			snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			snap.UserID,
			snap.Version,
			int64(snap.ExperiencePoints),
			snap.Level,
			snap.Streak.CurrentStreak,
			data,
			snap.CreatedAt,
			snap.UpdatedAt,
		); err != nil {
			return err
		}
		return r.writeProjections(ctx, tx, snap.UserID, snap.ActivityLog, snap.EarnedAchievements)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// Get returns the snapshot for a user.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*progress.ProfileSnapshot, error) {
	query := `SELECT version, snapshot FROM progress_profiles WHERE user_id = $1`

	var (
		version int64
		data    []byte
	)
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&version, &data); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return decodeSnapshot(data, version)
}

// Save commits the snapshot if the stored version still equals snap.Version.
func (r *ProfileRepository) Save(ctx context.Context, snap *progress.ProfileSnapshot) error {
	expected := snap.Version
	next := *snap
	next.Version = expected + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		UPDATE progress_profiles SET
			version = $1,
			experience_points = $2,
			level = $3,
			current_streak = $4,
			snapshot = $5,
			updated_at = $6
		WHERE user_id = $7 AND version = $8
	`

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query,
			next.Version,
			int64(next.ExperiencePoints),
			next.Level,
			next.Streak.CurrentStreak,
			data,
			next.UpdatedAt,
			next.UserID,
			expected,
		)
		if err != nil {
			return err
		}

		if result.RowsAffected() == 0 {
			return r.classifyMiss(ctx, tx, snap.UserID)
		}

		var storedLog, storedAchievements int
		if err := tx.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM processed_activities WHERE user_id = $1),
				(SELECT COUNT(*) FROM earned_achievements WHERE user_id = $1)
		`, next.UserID).Scan(&storedLog, &storedAchievements); err != nil {
			return err
		}

		return r.writeProjections(ctx, tx, next.UserID,
			tail(next.ActivityLog, storedLog),
			tail(next.EarnedAchievements, storedAchievements),
		)
	})
	if err != nil {
		if shared.IsNotFound(err) || shared.IsRetryable(err) {
			return err
		}
		return fmt.Errorf("failed to save profile: %w", err)
	}

	snap.Version = next.Version
	return nil
}

// List returns user IDs ordered by id.
func (r *ProfileRepository) List(ctx context.Context, opts progress.ListOptions) ([]string, error) {
	if opts.Limit <= 0 {
		opts = progress.DefaultListOptions()
	}

	query := `SELECT user_id FROM progress_profiles ORDER BY user_id LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile ids: %w", err)
	}
	return ids, nil
}

// Delete removes a profile and its projections.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM progress_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Activity History
// ─────────────────────────────────────────────────────────────────────────────

// ListProcessed returns committed activities for a user, newest first.
func (r *ProfileRepository) ListProcessed(ctx context.Context, userID string, limit int) ([]progress.ProcessedActivity, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT user_id, activity_id, kind, xp_awarded, processed_at
		FROM processed_activities
		WHERE user_id = $1
		ORDER BY processed_at DESC, activity_id
		LIMIT $2
	`

	var out []progress.ProcessedActivity
	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				pa   progress.ProcessedActivity
				kind string
				xp   int64
			)
			if err := rows.Scan(&pa.UserID, &pa.ActivityID, &kind, &xp, &pa.ProcessedAt); err != nil {
				return err
			}
			pa.Kind = progress.ActivityKind(kind)
			pa.XPAwarded = progress.XP(xp)
			out = append(out, pa)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list processed activities: %w", err)
	}

	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// classifyMiss tells a missing profile apart from a lost version race.
func (r *ProfileRepository) classifyMiss(ctx context.Context, q Querier, userID string) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM progress_profiles WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return shared.ErrProfileNotFound
	}
	return shared.ErrProfileVersionStale
}

// writeProjections mirrors new activity log entries and earned achievements
// into their tables.
func (r *ProfileRepository) writeProjections(
	ctx context.Context,
	tx pgx.Tx,
	userID string,
	activities []progress.ActivityLogEntry,
	achievements []progress.EarnedAchievement,
) error {
	batch := &pgx.Batch{}

	for _, e := range activities {
		batch.Queue(`
			INSERT INTO processed_activities (user_id, activity_id, kind, xp_awarded, processed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, activity_id) DO NOTHING
		`, userID, e.ID, string(e.Kind), int64(e.XPAwarded), e.CompletedAt)
	}

	for _, ea := range achievements {
		batch.Queue(`
			INSERT INTO earned_achievements (user_id, achievement_id, earned_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, userID, string(ea.ID), ea.EarnedAt)
	}

	if batch.Len() == 0 {
		return nil
	}

	return tx.SendBatch(ctx, batch).Close()
}

// tail returns the entries past the first stored ones. Both projected lists
// only grow, so a table's row count for the user marks where new entries start.
func tail[E any](entries []E, stored int) []E {
	if stored >= len(entries) {
		return nil
	}
	return entries[max(stored, 0):]
}

func decodeSnapshot(data []byte, version int64) (*progress.ProfileSnapshot, error) {
	var snap progress.ProfileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	snap.Version = version
	if snap.SkillProgress == nil {
		snap.SkillProgress = make(map[string]progress.SkillLevel)
	}
	return &snap, nil
}
