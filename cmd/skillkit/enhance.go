package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/manager"
	"github.com/jingkaihe/skillkit/pkg/presenter"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <transcript.jsonl>",
	Short: "Turn an agent conversation into a new or improved skill",
	Long: `Read a conversation transcript (newline-delimited JSON turns), decide
whether it is worth codifying, and either create a new skill or fold the
workflow into a close-enough existing one. Existing skills are
snapshotted before they are touched.

Trivial or tool-less conversations are skipped; a generation attempt
that never passes validation is reported, not persisted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runEnhanceCmd(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)
}

func runEnhanceCmd(cmd *cobra.Command, transcriptPath string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	result, err := manager.NewEnhancer(m).Run(cmd.Context(), transcriptPath)
	if err != nil {
		presenter.Error(err, "enhancement failed")
		os.Exit(1)
	}

	switch {
	case result.Decision.Action == manager.ActionSkip:
		presenter.Info(fmt.Sprintf("Skipped: %s", result.Decision.Reason))
	case !result.Accepted:
		presenter.Warning(fmt.Sprintf("No valid skill after %d attempts", result.Stats.Attempts))
		for _, issue := range result.Stats.IssuesPerAttempt[len(result.Stats.IssuesPerAttempt)-1] {
			presenter.Info("  " + issue.String())
		}
		os.Exit(1)
	case result.Decision.Action == manager.ActionEnhance:
		presenter.Success(fmt.Sprintf("Enhanced %s (%s)", result.SkillName, result.Decision.Reason))
	default:
		presenter.Success(fmt.Sprintf("Created %s", result.SkillName))
	}
}
