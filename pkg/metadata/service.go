// Package metadata exposes read-only skill metadata: listing, per-skill
// info and version histories. It reads from the index but never trusts it:
// skills present on disk yet missing from the index are served via
// synthesized fallback entries instead of failing.
package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/versions"
)

// SkillMeta aggregates an index entry with the skill's resolved version
// history
type SkillMeta struct {
	index.Entry
	Versions []versions.Version `json:"versions"`
}

// SimilarityEntry is the lightweight projection the enhancer compares
// transcripts against
type SimilarityEntry struct {
	Name        string
	Description string
	Tags        []string
	Tools       []string
}

// Service is the read-only metadata facade
type Service struct {
	root     string
	indexer  *index.Indexer
	versions *versions.Manager
}

// New creates a metadata service over the shared indexer and version
// manager
func New(root string, indexer *index.Indexer, vm *versions.Manager) *Service {
	return &Service{root: root, indexer: indexer, versions: vm}
}

// List returns an entry for every skill directory under the root, sorted
// by name. Directories the index does not know about are represented by
// fallback entries rather than omitted.
func (s *Service) List(ctx context.Context) ([]index.Entry, error) {
	idx, err := s.indexer.Get(ctx)
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]index.Entry, len(idx.Skills))
	for _, e := range idx.Skills {
		indexed[e.Name] = e
	}

	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skills root %s", s.root)
	}

	var out []index.Entry
	for _, de := range dirEntries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if e, ok := indexed[de.Name()]; ok {
			out = append(out, e)
			continue
		}
		out = append(out, s.createFallbackEntry(ctx, de.Name()))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// createFallbackEntry synthesizes an entry directly from the filesystem
// when the index lacks or misrepresents a skill. It never fails: a skill
// whose manifest cannot be parsed still gets a minimal entry with
// HasSkillMd computed from disk.
func (s *Service) createFallbackEntry(ctx context.Context, name string) index.Entry {
	entry, err := index.BuildEntry(s.root, name)
	if err == nil {
		return entry
	}
	logger.G(ctx).WithError(err).WithField("skill", name).Debug("manifest unparseable, serving minimal fallback entry")

	skillDir := filepath.Join(s.root, name)
	minimal := index.Entry{
		Name:    name,
		Domain:  skills.DomainGeneral,
		Version: skills.DefaultVersion,
		Path:    skillDir,
	}
	if info, statErr := os.Stat(filepath.Join(skillDir, skills.SkillFileName)); statErr == nil && !info.IsDir() {
		minimal.HasSkillMd = true
	}
	return minimal
}

// Info returns full metadata for one skill. The index entry is refreshed
// best-effort first; refresh failures are swallowed and the best available
// data is returned instead.
func (s *Service) Info(ctx context.Context, name string) (*SkillMeta, error) {
	if err := s.indexer.UpdateSkill(ctx, name); err != nil {
		logger.G(ctx).WithError(err).WithField("skill", name).Warn("index refresh failed, serving stale metadata")
	}

	if info, err := os.Stat(filepath.Join(s.root, name)); err != nil || !info.IsDir() {
		return nil, errors.Errorf("skill %q not found", name)
	}

	var entry index.Entry
	if idx, err := s.indexer.Get(ctx); err == nil {
		if e, ok := idx.Entry(name); ok {
			entry = e
		} else {
			entry = s.createFallbackEntry(ctx, name)
		}
	} else {
		entry = s.createFallbackEntry(ctx, name)
	}

	history, err := s.versions.List(name)
	if err != nil {
		return nil, err
	}
	return &SkillMeta{Entry: entry, Versions: history}, nil
}

// Versions returns the skill's history, sorted strictly descending by
// identifier
func (s *Service) Versions(name string) ([]versions.Version, error) {
	return s.versions.List(name)
}

// ListForSimilarity returns the projection used for duplicate detection
// and enhancement targeting
func (s *Service) ListForSimilarity(ctx context.Context) ([]SimilarityEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SimilarityEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, SimilarityEntry{
			Name:        e.Name,
			Description: e.Description,
			Tags:        e.Tags,
			Tools:       e.Tools,
		})
	}
	return out, nil
}
