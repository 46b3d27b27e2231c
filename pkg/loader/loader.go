// Package loader implements the two-level progressive loading contract:
// Level 1 is the cheap index-derived metadata used to rank and filter
// search results, Level 2 is the full on-demand skill content, memoized
// until explicitly invalidated.
package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Level1 is search-weight skill metadata derived from the index
type Level1 struct {
	Name        string        `json:"name"`
	Domain      skills.Domain `json:"domain"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags,omitempty"`
}

// Level2 is the full skill content loaded on demand
type Level2 struct {
	Doc     *skills.SkillDoc `json:"doc"`
	Scripts []string         `json:"scripts,omitempty"` // paths relative to the skill dir
	Path    string           `json:"path"`
}

// Loader serves both load levels over a shared indexer
type Loader struct {
	root    string
	indexer *index.Indexer

	mu    sync.Mutex
	cache map[string]*Level2
}

// New creates a loader over the given skills root and indexer
func New(root string, indexer *index.Indexer) *Loader {
	return &Loader{
		root:    root,
		indexer: indexer,
		cache:   map[string]*Level2{},
	}
}

// LoadAllLevel1 returns Level-1 metadata for every indexed skill
func (l *Loader) LoadAllLevel1(ctx context.Context) ([]Level1, error) {
	idx, err := l.indexer.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Level1, 0, len(idx.Skills))
	for _, e := range idx.Skills {
		out = append(out, level1FromEntry(e))
	}
	return out, nil
}

// SearchLevel1 filters Level-1 entries by query and/or domain. The query
// matches case-insensitively as a substring of name, description or tags;
// a query containing glob metacharacters is compiled as a glob pattern
// against the same fields. An empty query matches everything.
func (l *Loader) SearchLevel1(ctx context.Context, query string, domain skills.Domain) ([]Level1, error) {
	all, err := l.LoadAllLevel1(ctx)
	if err != nil {
		return nil, err
	}

	matcher := newQueryMatcher(query)
	var out []Level1
	for _, e := range all {
		if domain != "" && e.Domain != domain {
			continue
		}
		if !matcher.matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadLevel2 loads a skill's full content, memoizing the result by name.
// Repeated calls return the identical cached value until Invalidate or
// InvalidateAll. A nonexistent skill yields nil, not an error.
func (l *Loader) LoadLevel2(ctx context.Context, name string) (*Level2, error) {
	l.mu.Lock()
	if cached, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return cached, nil
	}
	l.mu.Unlock()

	skillDir := filepath.Join(l.root, name)
	manifestPath := filepath.Join(skillDir, skills.SkillFileName)
	if info, err := os.Stat(manifestPath); err != nil || info.IsDir() {
		return nil, nil
	}

	doc, err := skills.ParseFile(manifestPath, name)
	if err != nil {
		return nil, err
	}

	loaded := &Level2{
		Doc:     doc,
		Scripts: listScripts(skillDir),
		Path:    skillDir,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// another caller may have raced us here; keep the first value so
	// repeated loads stay reference-stable
	if cached, ok := l.cache[name]; ok {
		return cached, nil
	}
	l.cache[name] = loaded
	return loaded, nil
}

// Invalidate drops one skill from the Level-2 cache
func (l *Loader) Invalidate(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}

// InvalidateAll drops the entire Level-2 cache. Called on index rebuilds;
// the cache is never invalidated by a timer.
func (l *Loader) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = map[string]*Level2{}
}

func level1FromEntry(e index.Entry) Level1 {
	return Level1{
		Name:        e.Name,
		Domain:      e.Domain,
		Description: e.Description,
		Tags:        e.Tags,
	}
}

// queryMatcher matches a Level-1 entry against a search query
type queryMatcher struct {
	query   string
	pattern glob.Glob
}

func newQueryMatcher(query string) queryMatcher {
	m := queryMatcher{query: strings.ToLower(strings.TrimSpace(query))}
	if strings.ContainsAny(m.query, "*?[") {
		if g, err := glob.Compile(m.query); err == nil {
			m.pattern = g
		}
	}
	return m
}

func (m queryMatcher) matches(e Level1) bool {
	if m.query == "" {
		return true
	}
	fields := append([]string{e.Name, e.Description}, e.Tags...)
	for _, f := range fields {
		f = strings.ToLower(f)
		if m.pattern != nil {
			if m.pattern.Match(f) {
				return true
			}
			continue
		}
		if strings.Contains(f, m.query) {
			return true
		}
	}
	return false
}

// listScripts returns script paths relative to the skill directory, sorted
func listScripts(skillDir string) []string {
	var out []string
	scriptsDir := filepath.Join(skillDir, skills.ScriptsDir)
	_ = filepath.WalkDir(scriptsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(skillDir, path); err == nil {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(out)
	return out
}
