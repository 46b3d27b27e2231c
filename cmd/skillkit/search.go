package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

type SearchConfig struct {
	Domain string
}

func NewSearchConfig() *SearchConfig {
	return &SearchConfig{
		Domain: "",
	}
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search skill summaries",
	Long: `Search the lightweight skill summaries by substring or glob pattern
(e.g. "*-writer"), optionally narrowed to a domain. An empty query lists
every summary.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		config := getSearchConfigFromFlags(cmd)
		runSearchCmd(cmd, query, config)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <skill-name>",
	Short: "Show the full content of a skill",
	Long:  `Load the full skill: manifest body, execution steps and script listing.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runShowCmd(cmd, args[0])
	},
}

func init() {
	defaults := NewSearchConfig()
	searchCmd.Flags().StringP("domain", "d", defaults.Domain, "Only search skills in this domain")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
}

func getSearchConfigFromFlags(cmd *cobra.Command) *SearchConfig {
	config := NewSearchConfig()
	if domain, err := cmd.Flags().GetString("domain"); err == nil {
		config.Domain = domain
	}
	return config
}

func runSearchCmd(cmd *cobra.Command, query string, config *SearchConfig) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	results, err := m.Loader.SearchLevel1(cmd.Context(), query, skills.Domain(config.Domain))
	if err != nil {
		presenter.Error(err, "search failed")
		os.Exit(1)
	}
	if len(results) == 0 {
		presenter.Info("No matching skills")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOMAIN\tDESCRIPTION")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Domain, r.Description)
	}
	w.Flush()
}

func runShowCmd(cmd *cobra.Command, name string) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	level2, err := m.Loader.LoadLevel2(cmd.Context(), name)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to load skill %q", name))
		os.Exit(1)
	}
	if level2 == nil {
		presenter.Error(fmt.Errorf("skill %q not found", name), "")
		os.Exit(1)
	}

	presenter.Section(level2.Doc.Title)
	fmt.Println(strings.TrimSpace(level2.Doc.Body))
	if len(level2.Scripts) > 0 {
		fmt.Println()
		presenter.Section("Scripts")
		for _, s := range level2.Scripts {
			fmt.Println(s)
		}
	}
}
