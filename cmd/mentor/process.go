package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/infrastructure/rules"
)

var (
	processSnapshot string
	processUser     string
	processOut      string
	processActivity activityFlags
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Runs one engine step offline against a snapshot file",
	Long: `Applies an activity to a profile snapshot without touching any store.
The snapshot is read from --snapshot (JSON) or created fresh for --user.
The outcome is printed as JSON; --out writes the resulting snapshot.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processSnapshot, "snapshot", "", "Snapshot JSON file")
	processCmd.Flags().StringVar(&processUser, "user", "", "User ID for a fresh snapshot (when --snapshot is not set)")
	processCmd.Flags().StringVar(&processOut, "out", "", "Write the resulting snapshot to this file")
	processActivity.register(processCmd)
	rootCmd.AddCommand(processCmd)
}

// processView is the printed outcome; the snapshot goes to --out.
type processView struct {
	UserID        string                        `json:"user_id"`
	Duplicate     bool                          `json:"duplicate"`
	XPAwarded     progress.XP                   `json:"xp_awarded"`
	AchievementXP progress.XP                   `json:"achievement_xp"`
	MilestoneXP   progress.XP                   `json:"milestone_xp"`
	TotalXP       progress.XP                   `json:"total_xp"`
	Level         progress.LevelInfo            `json:"level"`
	LeveledUp     bool                          `json:"leveled_up"`
	Achievements  []progress.EarnedAchievement  `json:"new_achievements"`
	Milestones    []progress.CompletedMilestone `json:"completed_milestones"`
	Streak        progress.StreakRecord         `json:"streak"`
	Notifications any                           `json:"notifications"`
}

func runProcess(cmd *cobra.Command, _ []string) error {
	if processSnapshot == "" && processUser == "" {
		return fmt.Errorf("one of --snapshot or --user is required")
	}

	set, err := rules.LoadOrDefault(rulesPath)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	snap, err := readSnapshot(processSnapshot, processUser, set.Milestones, now)
	if err != nil {
		return err
	}

	activity, err := processActivity.build(now)
	if err != nil {
		return err
	}

	orch := progress.NewOrchestrator(set.Registry)
	if snap.HasProcessedActivity(activity.ID) {
		return writeJSON(cmd.OutOrStdout(), processView{
			UserID:    snap.UserID,
			Duplicate: true,
			TotalXP:   snap.ExperiencePoints,
			Level:     progress.LevelOf(snap.ExperiencePoints),
			Streak:    snap.Streak,
		})
	}

	outcome, err := orch.ProcessActivity(snap, activity)
	if err != nil {
		return err
	}

	if processOut != "" {
		data, err := json.MarshalIndent(outcome.Snapshot, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(processOut, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	return writeJSON(cmd.OutOrStdout(), processView{
		UserID:        outcome.Snapshot.UserID,
		XPAwarded:     outcome.XPAwarded,
		AchievementXP: outcome.AchievementXP,
		MilestoneXP:   outcome.MilestoneXP,
		TotalXP:       outcome.Snapshot.ExperiencePoints,
		Level:         progress.LevelOf(outcome.Snapshot.ExperiencePoints),
		LeveledUp:     outcome.LeveledUp,
		Achievements:  outcome.NewAchievements,
		Milestones:    outcome.NewlyCompletedMilestones,
		Streak:        outcome.UpdatedStreak,
		Notifications: outcome.Notifications,
	})
}

func readSnapshot(path, userID string, milestones []progress.Milestone, now time.Time) (*progress.ProfileSnapshot, error) {
	if path == "" {
		return progress.NewProfileSnapshotWithMilestones(userID, now, milestones), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap progress.ProfileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if snap.UserID == "" {
		return nil, fmt.Errorf("snapshot %s has no user_id", path)
	}
	return &snap, nil
}
