// Package manager wires the skill library's collaborators together behind
// one facade. Construction is explicit dependency injection; there are no
// package-level singletons, so tests can build a Manager per TempDir.
package manager

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/generate"
	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/llm"
	"github.com/jingkaihe/skillkit/pkg/loader"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/merge"
	"github.com/jingkaihe/skillkit/pkg/metadata"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/transfer"
	"github.com/jingkaihe/skillkit/pkg/versions"
	"github.com/jingkaihe/skillkit/pkg/wrapper"
)

// Manager owns a skills root and the collaborators operating on it
type Manager struct {
	root     string
	config   Config
	Indexer  *index.Indexer
	Metadata *metadata.Service
	Loader   *loader.Loader
	Versions *versions.Manager
	Merger   *merge.Merger
	Importer *transfer.Importer
	Pipeline *generate.Pipeline
	Wrapper  wrapper.Service
	LLM      llm.Client
}

// New builds a Manager from config, creating the skills root if needed
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.SkillsDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create skills root %s", cfg.SkillsDir)
	}

	var client llm.Client
	if c := llm.NewOpenAI(cfg.OpenAIAPIKey, llm.WithModel(cfg.Model), llm.WithBaseURL(cfg.OpenAIBaseURL)); c != nil {
		client = c
	}

	ix := index.New(cfg.SkillsDir)
	vm := versions.New(cfg.SkillsDir)
	meta := metadata.New(cfg.SkillsDir, ix, vm)
	merger := merge.New(cfg.SkillsDir, ix, meta, vm, cfg.SimilarityThreshold)

	var pipelineOpts []generate.PipelineOption
	if cfg.MaxAttempts > 0 {
		pipelineOpts = append(pipelineOpts, generate.WithMaxAttempts(cfg.MaxAttempts))
	}

	return &Manager{
		root:     cfg.SkillsDir,
		config:   cfg,
		Indexer:  ix,
		Metadata: meta,
		Loader:   loader.New(cfg.SkillsDir, ix),
		Versions: vm,
		Merger:   merger,
		Importer: transfer.NewImporter(cfg.SkillsDir, ix, vm, merger),
		Pipeline: generate.NewPipeline(generate.New(client), pipelineOpts...),
		Wrapper:  wrapper.NewShimService(cfg.SkillsDir, cfg.BinDir),
		LLM:      client,
	}, nil
}

// Root returns the skills root directory
func (m *Manager) Root() string {
	return m.root
}

// Config returns the effective configuration after defaulting
func (m *Manager) Config() Config {
	return m.config
}

// Export writes the named skill as a package to w
func (m *Manager) Export(ctx context.Context, name string, w io.Writer, opts ...transfer.ExportOption) error {
	return transfer.Export(ctx, m.root, name, w, opts...)
}

// PersistGenerated writes an accepted draft into the skills root: manifest,
// scripts, index refresh, cache invalidation and wrapper shims. The skill
// directory is created if missing and its manifest overwritten otherwise.
func (m *Manager) PersistGenerated(ctx context.Context, gen *generate.GeneratedSkill) error {
	if gen == nil || gen.Doc == nil || gen.Doc.Name == "" {
		return errors.New("draft has no skill name")
	}
	name := gen.Doc.Name
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create skill directory %s", dir)
	}

	data, err := skills.Serialize(gen.Doc)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize manifest for %s", name)
	}
	if err := os.WriteFile(filepath.Join(dir, skills.SkillFileName), data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write manifest for %s", name)
	}

	for _, script := range gen.Scripts {
		// drafts are validated upstream, but a path escaping the skill
		// directory must never reach the filesystem
		cleaned := filepath.Clean(filepath.FromSlash(script.Path))
		if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return errors.Errorf("script path %q escapes the skill directory", script.Path)
		}
		dest := filepath.Join(dir, cleaned)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create script directory for %s", script.Path)
		}
		mode := os.FileMode(0o644)
		if script.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(dest, []byte(script.Content), mode); err != nil {
			return errors.Wrapf(err, "failed to write script %s", script.Path)
		}
	}

	if err := m.Indexer.UpdateSkill(ctx, name); err != nil {
		return errors.Wrapf(err, "failed to index %s", name)
	}
	m.Loader.Invalidate(name)

	// wrapper installation is best-effort
	if result, err := m.Wrapper.InstallIfMissing(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("wrapper installation failed")
	} else if len(result.Errors) > 0 {
		logger.G(ctx).WithField("errors", result.Errors).Warn("some wrappers failed to install")
	}
	return nil
}

// Merge merges secondary into primary and refreshes wrappers
func (m *Manager) Merge(ctx context.Context, primary, secondary string) error {
	if err := m.Merger.Merge(ctx, primary, secondary); err != nil {
		return err
	}
	m.Loader.Invalidate(primary)
	m.Loader.Invalidate(secondary)
	if _, err := m.Wrapper.RemoveOrphans(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("wrapper cleanup failed after merge")
	}
	return nil
}

// Import restores a skill package and refreshes wrappers
func (m *Manager) Import(ctx context.Context, r io.Reader, opts transfer.ImportOptions) (*transfer.ImportResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = m.config.ImportTimeout
	}
	result, err := m.Importer.Import(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	if result.Imported {
		m.Loader.Invalidate(result.SkillName)
		if _, err := m.Wrapper.InstallIfMissing(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("wrapper installation failed after import")
		}
	}
	return result, nil
}

// Rollback restores a skill to a recorded version and invalidates caches
func (m *Manager) Rollback(ctx context.Context, name, version string) error {
	if err := m.Versions.Rollback(ctx, name, version); err != nil {
		return err
	}
	if err := m.Indexer.UpdateSkill(ctx, name); err != nil {
		logger.G(ctx).WithError(err).WithField("skill", name).Warn("failed to refresh index after rollback")
	}
	m.Loader.Invalidate(name)
	return nil
}
