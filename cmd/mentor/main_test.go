package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/application/query"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

// run executes the root command in-process and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv("APP_ENV", "development")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags clears values left over from a previous in-process run.
func resetFlags() {
	rulesPath, storeDriver, sqlitePath, logLevel = "", "", "", ""
	processSnapshot, processUser, processOut = "", "", ""
	processActivity = activityFlags{}
	completeActivity = activityFlags{}
	completeNoInit, completeBatchFile, completeBatchLimit = false, "", 0
	triggerAmount, triggerCount = 0, 0
	triggerCareer, triggerReason, triggerProfile, triggerNoInit = "", "", "", false
	profileIfNotExists, profileRecent = false, 10
	historyLimit, historyJSON = 20, false
	flagsUser = ""
}

func TestLevelCommand(t *testing.T) {
	out, err := run(t, "level", "250")
	require.NoError(t, err)

	var info progress.LevelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, progress.LevelOf(250), info)

	_, err = run(t, "level", "-5")
	assert.Error(t, err)

	_, err = run(t, "level", "lots")
	assert.Error(t, err)
}

func TestValidateRulesCommand(t *testing.T) {
	out, err := run(t, "validate-rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Rules OK (builtin)")

	out, err = run(t, "validate-rules", filepath.Join("..", "..", "config", "rules.example.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "rules.example.yaml")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("achievements:\n  - id: x\n    requirements: [\"moon_landing:1\"]\n"), 0o644))
	_, err = run(t, "validate-rules", bad)
	assert.Error(t, err)
}

func TestProcessCommand_FreshSnapshot(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "snap.json")

	out, err := run(t, "process", "--user", "u1", "--kind", "course", "--id", "a1",
		"--at", "2025-01-01T10:00:00Z", "--out", snapPath)
	require.NoError(t, err)

	var view processView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "u1", view.UserID)
	assert.Equal(t, progress.XP(50), view.XPAwarded)
	assert.Equal(t, 1, view.Streak.CurrentStreak)
	require.NotEmpty(t, view.Achievements)
	assert.Equal(t, progress.AchievementFirstCourse, view.Achievements[0].ID)

	t.Run("replaying the same activity is a duplicate", func(t *testing.T) {
		out, err := run(t, "process", "--snapshot", snapPath, "--kind", "course", "--id", "a1",
			"--at", "2025-01-01T10:00:00Z")
		require.NoError(t, err)

		var dup processView
		require.NoError(t, json.Unmarshal([]byte(out), &dup))
		assert.True(t, dup.Duplicate)
		assert.Equal(t, view.TotalXP, dup.TotalXP)
	})

	t.Run("next day extends the streak", func(t *testing.T) {
		out, err := run(t, "process", "--snapshot", snapPath, "--kind", "reading", "--id", "a2",
			"--at", "2025-01-02")
		require.NoError(t, err)

		var next processView
		require.NoError(t, json.Unmarshal([]byte(out), &next))
		assert.Equal(t, 2, next.Streak.CurrentStreak)
	})
}

func TestProcessCommand_Rejections(t *testing.T) {
	_, err := run(t, "process", "--kind", "course")
	assert.Error(t, err)

	// kind is required
	_, err = run(t, "process", "--user", "u1")
	assert.Error(t, err)

	_, err = run(t, "process", "--user", "u1", "--kind", "course", "--at", "yesterday")
	assert.Error(t, err)
}

func TestStoreBackedFlow_SQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mentor.db")
	store := []string{"--store", "sqlite", "--sqlite-path", db}

	out, err := run(t, append([]string{"profile", "init", "u1"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created profile u1")

	_, err = run(t, append([]string{"profile", "init", "u1"}, store...)...)
	assert.Error(t, err)

	_, err = run(t, append([]string{"complete", "u1", "--kind", "course", "--id", "c1"}, store...)...)
	require.NoError(t, err)

	out, err = run(t, append([]string{"complete", "u1", "--kind", "course", "--id", "c1"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"Duplicate": true`)

	_, err = run(t, append([]string{"trigger", "u1", "career_selected", "--career", "backend"}, store...)...)
	require.NoError(t, err)

	out, err = run(t, append([]string{"profile", "show", "u1"}, store...)...)
	require.NoError(t, err)
	var dto query.ProgressDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	assert.Equal(t, "u1", dto.UserID)
	assert.Equal(t, 1, dto.LearningActivities)
	assert.Greater(t, int64(dto.Level.CurrentXP), int64(0))

	out, err = run(t, append([]string{"history", "u1", "--json"}, store...)...)
	require.NoError(t, err)
	var entries []progress.ProcessedActivity
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].ActivityID)
}

func TestCompleteBatchCommand(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
- user_id: u1
  activity: {id: b1, kind: course, completed_at: 2025-01-01T10:00:00Z}
- user_id: u2
  activity: {id: b2, kind: project, completed_at: 2025-01-01T11:00:00Z}
- user_id: u1
  activity: {id: b1, kind: course, completed_at: 2025-01-01T10:00:00Z}
`), 0o644))

	out, err := run(t, "complete-batch", "--file", batch, "--store", "sqlite", "--sqlite-path", filepath.Join(dir, "m.db"))
	require.NoError(t, err)

	var view batchView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 2, view.Succeeded)
	assert.Equal(t, 1, view.Duplicates)
	assert.Zero(t, view.Failed)
	require.Len(t, view.Items, 3)
	assert.True(t, view.Items[2].Duplicate)
}

func TestTriggerCommand_Rejections(t *testing.T) {
	_, err := run(t, "trigger", "u1", "moon_landing")
	assert.Error(t, err)

	_, err = run(t, "trigger", "u1", "activity_completed")
	assert.Error(t, err)

	_, err = run(t, "trigger", "u1", "profile_updated", "--profile", "{not json")
	assert.Error(t, err)
}

func TestFlagsCommand(t *testing.T) {
	t.Setenv("FEATURE_NOTIFY_STREAK", "false")

	out, err := run(t, "flags", "--user", "u1")
	require.NoError(t, err)
	assert.Regexp(t, `notify\.streak\s+0%\s+false`, out)
	assert.Regexp(t, `events\.publish\s+100%\s+true`, out)
}
