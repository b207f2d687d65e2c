package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/careermentor/mentor-hub/internal/application/command"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

var (
	completeActivity   activityFlags
	completeNoInit     bool
	completeBatchFile  string
	completeBatchLimit int
)

var completeCmd = &cobra.Command{
	Use:   "complete <user-id>",
	Short: "Completes a learning activity and commits the progress step",
	Long: `Awards XP for the activity, updates the streak, unlocks achievements and
completes milestones, then saves the profile with optimistic concurrency.
Re-submitting the same activity ID is reported as a duplicate.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var completeBatchCmd = &cobra.Command{
	Use:   "complete-batch",
	Short: "Completes many activities from a YAML file",
	Long: `Reads a list of {user_id, activity} items. Different users are processed
in parallel; items for the same user are applied in file order.`,
	RunE: runCompleteBatch,
}

func init() {
	completeActivity.register(completeCmd)
	completeCmd.Flags().BoolVar(&completeNoInit, "no-init", false, "Fail instead of creating a missing profile")

	completeBatchCmd.Flags().StringVar(&completeBatchFile, "file", "", "Batch YAML file")
	completeBatchCmd.Flags().IntVar(&completeBatchLimit, "concurrency", 0, "Parallel users (defaults to BATCH_CONCURRENCY)")
	_ = completeBatchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(completeCmd, completeBatchCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		activity, err := completeActivity.build(time.Now().UTC())
		if err != nil {
			return err
		}
		if !completeNoInit {
			if err := a.ensureProfile(ctx, args[0]); err != nil {
				return err
			}
		}

		res, err := command.NewCompleteActivityHandler(a.commandDeps()).Handle(ctx, command.CompleteActivityCommand{
			UserID:   args[0],
			Activity: activity,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	})
}

// batchItem is one entry of a batch file.
type batchItem struct {
	UserID   string                 `yaml:"user_id"`
	Activity progress.ActivityEvent `yaml:"activity"`
}

// batchItemView is the printed per-item result.
type batchItemView struct {
	Index      int    `json:"index"`
	UserID     string `json:"user_id"`
	ActivityID string `json:"activity_id"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	XPGained   int64  `json:"xp_gained,omitempty"`
	Version    int64  `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

type batchView struct {
	Succeeded  int             `json:"succeeded"`
	Duplicates int             `json:"duplicates"`
	Failed     int             `json:"failed"`
	DurationMS int64           `json:"duration_ms"`
	Items      []batchItemView `json:"items"`
}

func readBatch(path string) ([]batchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var items []batchItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	return items, nil
}

func runCompleteBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	items, err := readBatch(completeBatchFile)
	if err != nil {
		return err
	}

	return withApp(ctx, func(a *app) error {
		seen := make(map[string]bool)
		cmds := make([]command.CompleteActivityCommand, 0, len(items))
		for _, it := range items {
			if it.UserID != "" && !seen[it.UserID] {
				seen[it.UserID] = true
				if err := a.ensureProfile(ctx, it.UserID); err != nil {
					// Invalid user IDs surface again as item failures below.
					a.log.Warn("profile init failed", zap.String("user_id", it.UserID), zap.Error(err))
				}
			}
			cmds = append(cmds, command.CompleteActivityCommand{UserID: it.UserID, Activity: it.Activity})
		}

		concurrency := completeBatchLimit
		if concurrency <= 0 {
			concurrency = a.cfg.App.BatchConcurrency
		}
		single := command.NewCompleteActivityHandler(a.commandDeps())
		res, err := command.NewCompleteActivitiesHandler(single, concurrency).
			Handle(ctx, command.CompleteActivitiesCommand{Items: cmds})
		if err != nil {
			return err
		}

		view := batchView{
			Succeeded:  res.Succeeded,
			Duplicates: res.Duplicates,
			Failed:     res.Failed,
			DurationMS: res.Duration.Milliseconds(),
			Items:      make([]batchItemView, 0, len(res.Items)),
		}
		for _, item := range res.Items {
			v := batchItemView{
				Index:      item.Index,
				UserID:     cmds[item.Index].UserID,
				ActivityID: cmds[item.Index].Activity.ID,
			}
			switch {
			case item.Err != nil:
				v.Error = item.Err.Error()
			case item.Result.Duplicate:
				v.Duplicate = true
			default:
				v.XPGained = int64(item.Result.Outcome.TotalXPGained())
				v.Version = item.Result.Version
			}
			view.Items = append(view.Items, v)
		}

		if err := writeJSON(cmd.OutOrStdout(), view); err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d items failed", res.Failed, len(res.Items))
		}
		return nil
	})
}
