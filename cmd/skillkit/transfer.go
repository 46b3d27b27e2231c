package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/transfer"
)

type ExportConfig struct {
	Output   string
	Excludes []string
}

func NewExportConfig() *ExportConfig {
	return &ExportConfig{
		Output:   "",
		Excludes: nil,
	}
}

type ImportConfig struct {
	Overwrite bool
	MergeInto string
}

func NewImportConfig() *ImportConfig {
	return &ImportConfig{
		Overwrite: false,
		MergeInto: "",
	}
}

var exportCmd = &cobra.Command{
	Use:   "export <skill-name>",
	Short: "Export a skill as a portable package",
	Long: `Write a skill, its scripts and its version history as a gzipped tar
package. Use --exclude to leave parts out, e.g. --exclude 'versions/**'
for a package without history.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getExportConfigFromFlags(cmd)
		runExportCmd(cmd, args[0], config)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <package-file>",
	Short: "Import a skill package",
	Long: `Restore a skill from an exported package. The package is extracted to a
staging area and moved into the library only when fully valid; on
conflict the existing skill is kept unless --overwrite or --merge-into
is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getImportConfigFromFlags(cmd)
		runImportCmd(cmd, args[0], config)
	},
}

func init() {
	exportDefaults := NewExportConfig()
	exportCmd.Flags().StringP("output", "o", exportDefaults.Output, "Output file (defaults to <skill-name>.tar.gz)")
	exportCmd.Flags().StringSlice("exclude", exportDefaults.Excludes, "Glob patterns to exclude from the package")

	importDefaults := NewImportConfig()
	importCmd.Flags().Bool("overwrite", importDefaults.Overwrite, "Replace an existing skill of the same name (after snapshotting it)")
	importCmd.Flags().String("merge-into", importDefaults.MergeInto, "Merge the imported skill into this existing skill")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func getExportConfigFromFlags(cmd *cobra.Command) *ExportConfig {
	config := NewExportConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if excludes, err := cmd.Flags().GetStringSlice("exclude"); err == nil {
		config.Excludes = excludes
	}
	return config
}

func getImportConfigFromFlags(cmd *cobra.Command) *ImportConfig {
	config := NewImportConfig()
	if overwrite, err := cmd.Flags().GetBool("overwrite"); err == nil {
		config.Overwrite = overwrite
	}
	if mergeInto, err := cmd.Flags().GetString("merge-into"); err == nil {
		config.MergeInto = mergeInto
	}
	return config
}

func runExportCmd(cmd *cobra.Command, name string, config *ExportConfig) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	output := config.Output
	if output == "" {
		output = name + ".tar.gz"
	}
	f, err := os.Create(output)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to create %s", output))
		os.Exit(1)
	}
	defer f.Close()

	var opts []transfer.ExportOption
	if len(config.Excludes) > 0 {
		opts = append(opts, transfer.WithExcludes(config.Excludes...))
	}
	if err := m.Export(cmd.Context(), name, f, opts...); err != nil {
		os.Remove(output)
		presenter.Error(err, fmt.Sprintf("failed to export %q", name))
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Exported %s to %s", name, output))
}

func runImportCmd(cmd *cobra.Command, path string, config *ImportConfig) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to open %s", path))
		os.Exit(1)
	}
	defer f.Close()

	result, err := m.Import(cmd.Context(), f, transfer.ImportOptions{
		Overwrite: config.Overwrite,
		MergeInto: config.MergeInto,
	})
	if err != nil {
		presenter.Error(err, "import failed")
		os.Exit(1)
	}
	if !result.Imported {
		presenter.Error(result.Errors, "import skipped")
		os.Exit(1)
	}

	msg := fmt.Sprintf("Imported %s", result.SkillName)
	if len(result.ConflictsResolved) > 0 {
		msg += fmt.Sprintf(" (resolved conflicts: %v)", result.ConflictsResolved)
	}
	presenter.Success(msg)
}
