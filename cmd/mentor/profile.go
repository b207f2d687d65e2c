package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/application/command"
	"github.com/careermentor/mentor-hub/internal/application/query"
)

var (
	profileIfNotExists bool
	profileRecent      int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Creates and inspects progress profiles",
}

var profileInitCmd = &cobra.Command{
	Use:   "init <user-id>",
	Short: "Creates a profile seeded with the configured milestones",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileInit,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Prints the progress dashboard for a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func init() {
	profileInitCmd.Flags().BoolVar(&profileIfNotExists, "if-not-exists", false, "Succeed when the profile already exists")
	profileShowCmd.Flags().IntVar(&profileRecent, "recent", 10, "Number of recent activities to include")

	profileCmd.AddCommand(profileInitCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileInit(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		res, err := command.NewInitProfileHandler(a.commandDeps(), a.rules.Milestones).
			Handle(cmd.Context(), command.InitProfileCommand{
				UserID:      args[0],
				IfNotExists: profileIfNotExists,
			})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Created {
			fmt.Fprintf(out, "Created profile %s (%d milestones)\n", res.Snapshot.UserID, len(res.Snapshot.Milestones))
		} else {
			fmt.Fprintf(out, "Profile %s already exists (version %d)\n", res.Snapshot.UserID, res.Snapshot.Version)
		}
		return nil
	})
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		dto, err := a.progressHandler().Handle(cmd.Context(), query.GetProgressQuery{
			UserID:      args[0],
			RecentLimit: profileRecent,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), dto)
	})
}
