package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

type ListConfig struct {
	Domain string
}

func NewListConfig() *ListConfig {
	return &ListConfig{
		Domain: "",
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all installed skills",
	Long: `List all installed skills with their domain, description and version
count. Skills whose manifest cannot be parsed still appear with whatever
metadata could be recovered.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getListConfigFromFlags(cmd)
		runListCmd(cmd, config)
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("domain", "d", defaults.Domain, "Only show skills in this domain")
	rootCmd.AddCommand(listCmd)
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if domain, err := cmd.Flags().GetString("domain"); err == nil {
		config.Domain = domain
	}
	return config
}

func runListCmd(cmd *cobra.Command, config *ListConfig) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	entries, err := m.Metadata.List(cmd.Context())
	if err != nil {
		presenter.Error(err, "failed to list skills")
		os.Exit(1)
	}

	if config.Domain != "" {
		domain := skills.Domain(config.Domain)
		filtered := entries[:0]
		for _, e := range entries {
			if e.Domain == domain {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		presenter.Info("No skills installed")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOMAIN\tDESCRIPTION\tSCRIPTS")
	for _, e := range entries {
		desc := e.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.Name, e.Domain, desc, e.ScriptCount)
	}
	w.Flush()
}
