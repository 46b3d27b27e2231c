// Package index maintains a persisted search index over the skills root.
// The index is a cache: the filesystem is authoritative, and every consumer
// must tolerate an index that is absent, stale, or missing an entry.
package index

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// FileName is the persisted index location under the skills root. The dot
// prefix keeps it out of directory scans, which skip hidden entries.
const FileName = ".index.json"

// Entry is a denormalized, cheap-to-scan projection of a skill manifest
// plus filesystem facts
type Entry struct {
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Domain      skills.Domain `json:"domain"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags,omitempty"`
	Tools       []string      `json:"tools,omitempty"`
	ScriptCount int           `json:"script_count"`
	Path        string        `json:"path"`
	Version     string        `json:"version"`
	HasSkillMd  bool          `json:"has_skill_md"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Index is the persisted collection of entries, sorted by name
type Index struct {
	Skills    []Entry   `json:"skills"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry returns the entry for name, if present
func (ix *Index) Entry(name string) (Entry, bool) {
	for _, e := range ix.Skills {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Indexer builds and maintains the skill index for a single skills root
type Indexer struct {
	root string

	mu    sync.RWMutex
	index *Index
}

// New creates an Indexer over the given skills root
func New(root string) *Indexer {
	return &Indexer{root: root}
}

// Root returns the skills root the indexer operates on
func (ix *Indexer) Root() string {
	return ix.root
}

// Rebuild performs a full scan of the skills root and atomically replaces
// the persisted index. A skill whose manifest fails to parse is logged and
// omitted; it never aborts the rebuild.
func (ix *Indexer) Rebuild(ctx context.Context) (*Index, error) {
	log := logger.G(ctx)

	dirEntries, err := os.ReadDir(ix.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skills root %s", ix.root)
	}

	idx := &Index{UpdatedAt: time.Now()}
	var parseErrs error
	for _, de := range dirEntries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		entry, err := BuildEntry(ix.root, de.Name())
		if err != nil {
			parseErrs = multierror.Append(parseErrs, err)
			log.WithError(err).WithField("skill", de.Name()).Warn("skipping unparseable skill")
			continue
		}
		if !entry.HasSkillMd {
			// Directories without a manifest are not indexed; metadata
			// fallback paths still enumerate them from disk.
			continue
		}
		idx.Skills = append(idx.Skills, entry)
	}

	sortEntries(idx.Skills)

	if err := ix.persist(idx); err != nil {
		return nil, err
	}

	ix.mu.Lock()
	ix.index = idx
	ix.mu.Unlock()

	if merr, ok := parseErrs.(*multierror.Error); ok {
		log.WithField("skipped", len(merr.Errors)).Debug("index rebuild completed with skipped skills")
	}
	return idx, nil
}

// UpdateSkill re-parses a single skill and replaces or inserts its entry
// without a full rescan. If the skill directory no longer exists its entry
// is dropped.
func (ix *Indexer) UpdateSkill(ctx context.Context, name string) error {
	idx, err := ix.Get(ctx)
	if err != nil {
		return err
	}

	updated := &Index{UpdatedAt: time.Now()}
	for _, e := range idx.Skills {
		if e.Name != name {
			updated.Skills = append(updated.Skills, e)
		}
	}

	skillDir := filepath.Join(ix.root, name)
	if info, err := os.Stat(skillDir); err == nil && info.IsDir() {
		entry, err := BuildEntry(ix.root, name)
		if err != nil {
			return errors.Wrapf(err, "failed to refresh index entry for %s", name)
		}
		if entry.HasSkillMd {
			updated.Skills = append(updated.Skills, entry)
		}
	}

	sortEntries(updated.Skills)

	if err := ix.persist(updated); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.index = updated
	ix.mu.Unlock()
	return nil
}

// Get returns the in-memory index, lazily loading the persisted file or
// triggering a first build when neither exists
func (ix *Indexer) Get(ctx context.Context) (*Index, error) {
	ix.mu.RLock()
	idx := ix.index
	ix.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	if loaded, err := ix.load(); err == nil {
		ix.mu.Lock()
		ix.index = loaded
		ix.mu.Unlock()
		return loaded, nil
	} else if !os.IsNotExist(errors.Cause(err)) {
		logger.G(ctx).WithError(err).Warn("failed to load persisted index, rebuilding")
	}

	return ix.Rebuild(ctx)
}

// load reads the persisted index file
func (ix *Indexer) load() (*Index, error) {
	data, err := os.ReadFile(filepath.Join(ix.root, FileName))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read index file")
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal index file")
	}
	return &idx, nil
}

// persist writes the index atomically: temp file in the same directory,
// then rename. Readers never observe a torn index file.
func (ix *Indexer) persist(idx *Index) error {
	if err := os.MkdirAll(ix.root, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create skills root %s", ix.root)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal index")
	}

	finalPath := filepath.Join(ix.root, FileName)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write temporary index %s", tempPath)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return errors.Wrapf(err, "failed to rename index into place at %s", finalPath)
	}
	return nil
}

// BuildEntry constructs an index entry for a skill directly from the
// filesystem. Exported so fallback paths can synthesize entries when the
// index lacks one.
func BuildEntry(root, name string) (Entry, error) {
	skillDir := filepath.Join(root, name)
	entry := Entry{
		Name:      name,
		Domain:    skills.DomainGeneral,
		Version:   skills.DefaultVersion,
		Path:      skillDir,
		UpdatedAt: time.Now(),
	}

	manifestPath := filepath.Join(skillDir, skills.SkillFileName)
	if info, err := os.Stat(manifestPath); err == nil && !info.IsDir() {
		entry.HasSkillMd = true
		doc, err := skills.ParseFile(manifestPath, name)
		if err != nil {
			return Entry{}, err
		}
		entry.Name = name // identity is the directory name, not the frontmatter
		entry.Title = doc.Title
		entry.Domain = doc.Domain
		entry.Description = doc.Description
		entry.Tags = doc.Tags
		entry.Tools = doc.ToolDependencies
		entry.Version = doc.Version
	}

	entry.ScriptCount = countScripts(skillDir)
	return entry, nil
}

// countScripts counts regular files under the skill's scripts directory
func countScripts(skillDir string) int {
	count := 0
	scriptsDir := filepath.Join(skillDir, skills.ScriptsDir)
	_ = filepath.WalkDir(scriptsDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
