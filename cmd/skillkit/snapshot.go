package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <skill-name>",
	Short: "Record a version snapshot of a skill",
	Long: `Copy the skill's current state into its version history. Snapshot IDs
are timestamp-based and strictly increasing, so history listings sort
newest first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSnapshotCmd(cmd, args[0])
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <skill-name> <version>",
	Short: "Restore a skill to a recorded version",
	Long: `Restore a skill's files from a version snapshot. The current state is
snapshotted first, so a rollback is itself reversible.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRollbackCmd(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func runSnapshotCmd(cmd *cobra.Command, name string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	v, err := m.Versions.Snapshot(cmd.Context(), name)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to snapshot %q", name))
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Recorded version %s of %s", v.Version, name))
}

func runRollbackCmd(cmd *cobra.Command, name, version string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	if err := m.Rollback(cmd.Context(), name, version); err != nil {
		presenter.Error(err, fmt.Sprintf("failed to roll back %q", name))
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Rolled back %s to %s", name, version))
}
