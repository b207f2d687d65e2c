package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/application/command"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

var (
	triggerAmount  int64
	triggerCount   int
	triggerCareer  string
	triggerReason  string
	triggerProfile string
	triggerNoInit  bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <user-id> <kind>",
	Short: "Records a platform event that can unlock achievements",
	Long: `Records a non-activity trigger: assessment_completed, ats_improvement,
chat_milestone, career_selected, roadmap_generated, skill_gap_analysis,
xp_awarded or profile_updated. Use "complete" for learning activities.`,
	Args: cobra.ExactArgs(2),
	RunE: runTrigger,
}

func init() {
	triggerCmd.Flags().Int64Var(&triggerAmount, "amount", 0, "ATS improvement points or XP amount")
	triggerCmd.Flags().IntVar(&triggerCount, "count", 0, "Chat message count")
	triggerCmd.Flags().StringVar(&triggerCareer, "career", "", "Selected career path")
	triggerCmd.Flags().StringVar(&triggerReason, "reason", "", "Reason for a direct XP award")
	triggerCmd.Flags().StringVar(&triggerProfile, "profile", "", `Profile update as JSON, e.g. '{"roadmap_progress":50}'`)
	triggerCmd.Flags().BoolVar(&triggerNoInit, "no-init", false, "Fail instead of creating a missing profile")
	rootCmd.AddCommand(triggerCmd)
}

// buildTrigger maps a kind and the flag values onto a trigger.
func buildTrigger(kind progress.TriggerKind) (progress.Trigger, error) {
	switch kind {
	case progress.TriggerAssessmentCompleted:
		return progress.AssessmentCompleted(), nil
	case progress.TriggerAtsImprovement:
		return progress.AtsImproved(triggerAmount), nil
	case progress.TriggerChatMilestone:
		return progress.ChatMilestoneReached(triggerCount), nil
	case progress.TriggerCareerSelected:
		return progress.CareerPathSelected(triggerCareer), nil
	case progress.TriggerRoadmapGenerated:
		return progress.RoadmapCreated(), nil
	case progress.TriggerSkillGapAnalysis:
		return progress.SkillGapAnalyzed(), nil
	case progress.TriggerXPAwarded:
		return progress.XPAwarded(triggerAmount, triggerReason), nil
	case progress.TriggerProfileUpdated:
		var update progress.ProfileUpdate
		if triggerProfile != "" {
			if err := json.Unmarshal([]byte(triggerProfile), &update); err != nil {
				return progress.Trigger{}, fmt.Errorf("parse --profile: %w", err)
			}
		}
		return progress.ProfileUpdated(update), nil
	case progress.TriggerActivityCompleted:
		return progress.Trigger{}, fmt.Errorf("use the complete command for %s", kind)
	default:
		return progress.Trigger{}, fmt.Errorf("unsupported trigger kind %q", kind)
	}
}

func runTrigger(cmd *cobra.Command, args []string) error {
	kind, err := progress.ParseTriggerKind(args[1])
	if err != nil {
		return err
	}
	trig, err := buildTrigger(kind)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		if !triggerNoInit {
			if err := a.ensureProfile(ctx, args[0]); err != nil {
				return err
			}
		}
		res, err := command.NewRecordTriggerHandler(a.commandDeps()).Handle(ctx, command.RecordTriggerCommand{
			UserID:  args[0],
			Trigger: trig,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	})
}
