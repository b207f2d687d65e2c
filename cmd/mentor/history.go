package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "Lists committed activities for a profile, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	userID, err := shared.NewUserID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		entries, err := a.history.ListProcessed(ctx, userID.String(), historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), entries)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVITY\tKIND\tXP\tPROCESSED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ActivityID, e.Kind, e.XPAwarded, e.ProcessedAt.Format(timeutil.FormatDateTime))
		}
		return w.Flush()
	})
}
