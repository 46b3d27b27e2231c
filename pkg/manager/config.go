package manager

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jingkaihe/skillkit/pkg/merge"
	"github.com/jingkaihe/skillkit/pkg/transfer"
)

// Config is the manager configuration, populated from viper (config file,
// SKILLKIT_ env vars) or flags by the CLI
type Config struct {
	// SkillsDir is the skills root; empty selects ~/.skillkit/skills
	SkillsDir string `mapstructure:"skills_dir"`
	// BinDir receives script wrapper shims; empty selects ~/.skillkit/bin
	BinDir string `mapstructure:"bin_dir"`
	// SimilarityThreshold tunes duplicate detection and enhance routing;
	// zero selects the merge package default
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// MaxAttempts bounds the generation pipeline; zero selects the default
	MaxAttempts int `mapstructure:"max_attempts"`
	// ImportTimeout bounds skill imports; zero selects the default
	ImportTimeout time.Duration `mapstructure:"import_timeout"`
	// OpenAIAPIKey enables model-backed generation when set
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	// Model overrides the default completion model
	Model string `mapstructure:"model"`
	// OpenAIBaseURL points at an OpenAI-compatible endpoint
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
}

// withDefaults fills unset fields with their defaults
func (c Config) withDefaults() Config {
	if c.SkillsDir == "" {
		c.SkillsDir = filepath.Join(homeDir(), ".skillkit", "skills")
	}
	if c.BinDir == "" {
		c.BinDir = filepath.Join(homeDir(), ".skillkit", "bin")
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = merge.DefaultSimilarityThreshold
	}
	if c.ImportTimeout <= 0 {
		c.ImportTimeout = transfer.DefaultImportTimeout
	}
	return c
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
