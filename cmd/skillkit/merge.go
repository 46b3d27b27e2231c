package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
)

type MergeConfig struct {
	Yes bool
}

func NewMergeConfig() *MergeConfig {
	return &MergeConfig{
		Yes: false,
	}
}

var mergeCmd = &cobra.Command{
	Use:   "merge <primary> <secondary>",
	Short: "Merge one skill into another",
	Long: `Fold the secondary skill into the primary: missing execution steps,
tools and tags are appended, scripts are adopted, and the secondary's
version history is carried over before its directory is removed. Both
skills are snapshotted first.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		config := getMergeConfigFromFlags(cmd)
		runMergeCmd(cmd, args[0], args[1], config)
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find similar or conflicting skills",
	Long: `Compare every pair of installed skills and report the ones at or above
the similarity threshold, likely candidates for a merge. Name conflicts
sort first.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runSimilarCmd(cmd)
	},
}

func init() {
	defaults := NewMergeConfig()
	mergeCmd.Flags().BoolP("yes", "y", defaults.Yes, "Skip the confirmation prompt")
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(similarCmd)
}

func getMergeConfigFromFlags(cmd *cobra.Command) *MergeConfig {
	config := NewMergeConfig()
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	return config
}

func runMergeCmd(cmd *cobra.Command, primary, secondary string, config *MergeConfig) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	if !config.Yes {
		answer := presenter.Prompt(
			fmt.Sprintf("Merge %q into %q and remove %q?", secondary, primary, secondary), "y", "N")
		if answer != "y" && answer != "Y" {
			presenter.Info("Merge aborted")
			return
		}
	}

	if err := m.Merge(cmd.Context(), primary, secondary); err != nil {
		presenter.Error(err, "merge failed")
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Merged %s into %s", secondary, primary))
}

func runSimilarCmd(cmd *cobra.Command) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	pairs, err := m.Merger.FindSimilar(cmd.Context())
	if err != nil {
		presenter.Error(err, "similarity scan failed")
		os.Exit(1)
	}
	if len(pairs) == 0 {
		presenter.Info("No similar skills found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "A\tB\tSCORE\tREASON")
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", p.A, p.B, p.Score, p.Reason)
	}
	w.Flush()
}
