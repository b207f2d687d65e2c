package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careermentor/mentor-hub/internal/infrastructure/rules"
)

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules [file]",
	Short: "Validates a rules file against the schema and the requirement grammar",
	Long:  "Checks a rules YAML file: JSON schema, requirement strings, unique IDs and milestone rewards. Without a file the built-in rules are checked.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidateRules,
}

func init() {
	rootCmd.AddCommand(validateRulesCmd)
}

func runValidateRules(cmd *cobra.Command, args []string) error {
	path := rulesPath
	if len(args) == 1 {
		path = args[0]
	}

	set, err := rules.LoadOrDefault(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rules OK (%s)\n", set.Source)
	fmt.Fprintf(out, "  achievements: %d\n", set.Registry.Len())
	fmt.Fprintf(out, "  milestones:   %d\n", len(set.Milestones))
	return nil
}
