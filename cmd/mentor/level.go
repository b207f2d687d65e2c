package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
)

var levelCmd = &cobra.Command{
	Use:   "level <xp>...",
	Short: "Prints level information for XP totals",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLevel,
}

func init() {
	rootCmd.AddCommand(levelCmd)
}

func runLevel(cmd *cobra.Command, args []string) error {
	infos := make([]progress.LevelInfo, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid xp %q: %w", arg, err)
		}
		xp := progress.XP(n)
		if !xp.IsValid() {
			return fmt.Errorf("invalid xp %q: must not be negative", arg)
		}
		infos = append(infos, progress.LevelOf(xp))
	}

	if len(infos) == 1 {
		return writeJSON(cmd.OutOrStdout(), infos[0])
	}
	return writeJSON(cmd.OutOrStdout(), infos)
}
