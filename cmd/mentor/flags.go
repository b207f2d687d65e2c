package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagsUser string

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Lists feature flags as configured by FEATURE_* variables",
	Args:  cobra.NoArgs,
	RunE:  runFlags,
}

func init() {
	flagsCmd.Flags().StringVar(&flagsUser, "user", "", "Evaluate rollouts for this user")
	rootCmd.AddCommand(flagsCmd)
}

func runFlags(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FLAG\tROLLOUT\tON\tDESCRIPTION")
	for _, f := range cfg.Features.All() {
		fmt.Fprintf(w, "%s\t%d%%\t%t\t%s\n", f.Name, f.Rollout, cfg.Features.IsEnabled(f.Name, flagsUser), f.Description)
	}
	return w.Flush()
}
