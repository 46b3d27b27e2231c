package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/manager"
	"github.com/jingkaihe/skillkit/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLKIT")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillkit")
	viper.AddConfigPath(".")

	// Defaults double as env var bindings for AutomaticEnv
	viper.SetDefault("skills_dir", "")
	viper.SetDefault("bin_dir", "")
	viper.SetDefault("similarity_threshold", 0.0)
	viper.SetDefault("max_attempts", 0)
	viper.SetDefault("import_timeout", 0)
	viper.SetDefault("openai_api_key", "")
	viper.SetDefault("model", "")
	viper.SetDefault("openai_base_url", "")
	viper.SetDefault("log_level", "warn")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

// getManager builds the manager from the effective configuration
func getManager() (*manager.Manager, error) {
	var cfg manager.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return manager.New(cfg)
}

var rootCmd = &cobra.Command{
	Use:   "skillkit",
	Short: "Manage a library of reusable agent skills",
	Long: `Skillkit manages a filesystem library of agent skills: discovery and
search, version history, duplicate detection and merging, portable
import/export packages, and turning agent conversations into new skills.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning(fmt.Sprintf("invalid log level %q, using warn", viper.GetString("log_level")))
		}
		if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
			presenter.SetQuiet(quiet)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("skills-dir", "", "Skills root directory (default ~/.skillkit/skills)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")

	// Bind flags to viper
	viper.BindPFlag("skills_dir", rootCmd.PersistentFlags().Lookup("skills-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
