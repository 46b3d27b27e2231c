package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the search index from disk",
	Long: `Walk the skills root and rebuild the search index from scratch. Skills
with unparseable manifests are skipped with a warning and reported at the
end; the index still covers everything that parsed.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runRebuildCmd(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuildCmd(cmd *cobra.Command) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	idx, err := m.Indexer.Rebuild(cmd.Context())
	if err != nil {
		presenter.Error(err, "index rebuild failed")
		os.Exit(1)
	}
	m.Loader.InvalidateAll()

	presenter.Success(fmt.Sprintf("Indexed %d skills", len(idx.Skills)))
}
