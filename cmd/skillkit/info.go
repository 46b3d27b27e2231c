package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
)

var infoCmd = &cobra.Command{
	Use:   "info <skill-name>",
	Short: "Show metadata for a skill",
	Long: `Show a skill's indexed metadata and version history. The index entry is
refreshed from disk first, so the output reflects the current manifest.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runInfoCmd(cmd, args[0])
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <skill-name>",
	Short: "List the version history of a skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runVersionsCmd(args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionsCmd)
}

func runInfoCmd(cmd *cobra.Command, name string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	meta, err := m.Metadata.Info(cmd.Context(), name)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to load skill %q", name))
		os.Exit(1)
	}

	presenter.Section(meta.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Title:\t%s\n", meta.Title)
	fmt.Fprintf(w, "Domain:\t%s\n", meta.Domain)
	fmt.Fprintf(w, "Description:\t%s\n", meta.Description)
	fmt.Fprintf(w, "Version:\t%s\n", meta.Version)
	if len(meta.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(meta.Tags, ", "))
	}
	if len(meta.Tools) > 0 {
		fmt.Fprintf(w, "Tools:\t%s\n", strings.Join(meta.Tools, ", "))
	}
	fmt.Fprintf(w, "Scripts:\t%d\n", meta.ScriptCount)
	fmt.Fprintf(w, "Path:\t%s\n", meta.Path)
	fmt.Fprintf(w, "Snapshots:\t%d\n", len(meta.Versions))
	w.Flush()
}

func runVersionsCmd(name string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	history, err := m.Versions.List(name)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to list versions of %q", name))
		os.Exit(1)
	}
	if len(history) == 0 {
		presenter.Info(fmt.Sprintf("No snapshots recorded for %s", name))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tCREATED")
	for _, v := range history {
		fmt.Fprintf(w, "%s\t%s\n", v.Version, v.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	w.Flush()
}
