// Package versions manages a skill's append-only version history: whole
// directory snapshots under versions/<identifier>/, with identifiers that
// sort lexicographically in creation order.
package versions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/osutil"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Version describes one snapshot in a skill's history
type Version struct {
	Version   string    `json:"version"`
	DirPath   string    `json:"dir_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates and restores version snapshots for skills under a single
// skills root
type Manager struct {
	root string

	mu     sync.Mutex
	lastTS string
	seq    int
}

// New creates a version manager over the given skills root
func New(root string) *Manager {
	return &Manager{root: root}
}

// NextID returns a fresh version identifier: a UTC timestamp plus a
// monotonic sequence suffix, strictly greater than any identifier handed
// out earlier in this process even within the same second.
func (m *Manager) NextID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := time.Now().UTC().Format("20060102150405")
	if ts <= m.lastTS {
		// same second, or a clock that stepped backwards
		ts = m.lastTS
		m.seq++
	} else {
		m.lastTS = ts
		m.seq = 0
	}
	return fmt.Sprintf("%s-%03d", ts, m.seq)
}

// Snapshot copies the skill's current manifest, scripts and references into
// versions/<id>/ and returns the created version. Snapshots are taken
// before any destructive edit so history is always recoverable.
func (m *Manager) Snapshot(ctx context.Context, name string) (*Version, error) {
	skillDir := filepath.Join(m.root, name)
	if info, err := os.Stat(skillDir); err != nil || !info.IsDir() {
		return nil, errors.Errorf("skill %q not found at %s", name, skillDir)
	}

	id := m.NextID()
	destDir := filepath.Join(skillDir, skills.VersionsDir, id)
	if err := osutil.CopyDirSkip(skillDir, destDir, skills.VersionsDir); err != nil {
		os.RemoveAll(destDir)
		return nil, errors.Wrapf(err, "failed to snapshot skill %s", name)
	}

	logger.G(ctx).WithField("skill", name).WithField("version", id).Debug("created version snapshot")
	return &Version{Version: id, DirPath: destDir, CreatedAt: time.Now()}, nil
}

// List returns the skill's version history sorted strictly descending by
// identifier. A skill with no versions/ directory has an empty history.
func (m *Manager) List(name string) ([]Version, error) {
	versionsDir := filepath.Join(m.root, name, skills.VersionsDir)
	dirEntries, err := os.ReadDir(versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read versions directory %s", versionsDir)
	}

	var out []Version
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		v := Version{
			Version: de.Name(),
			DirPath: filepath.Join(versionsDir, de.Name()),
		}
		if info, err := de.Info(); err == nil {
			v.CreatedAt = info.ModTime()
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Rollback restores a prior snapshot as the live skill content. The
// about-to-be-replaced state is snapshotted first, so rollback never
// discards data.
func (m *Manager) Rollback(ctx context.Context, name, version string) error {
	skillDir := filepath.Join(m.root, name)
	snapDir := filepath.Join(skillDir, skills.VersionsDir, version)
	if info, err := os.Stat(snapDir); err != nil || !info.IsDir() {
		return errors.Errorf("version %q of skill %q not found", version, name)
	}

	if _, err := m.Snapshot(ctx, name); err != nil {
		return errors.Wrap(err, "failed to snapshot current state before rollback")
	}

	// clear live content, keeping the history itself
	dirEntries, err := os.ReadDir(skillDir)
	if err != nil {
		return errors.Wrapf(err, "failed to read skill directory %s", skillDir)
	}
	for _, de := range dirEntries {
		if de.Name() == skills.VersionsDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(skillDir, de.Name())); err != nil {
			return errors.Wrapf(err, "failed to clear %s during rollback", de.Name())
		}
	}

	if err := osutil.CopyDir(snapDir, skillDir); err != nil {
		return errors.Wrapf(err, "failed to restore version %s of skill %s", version, name)
	}

	logger.G(ctx).WithField("skill", name).WithField("version", version).Info("rolled back skill")
	return nil
}

// ParseCreatedAt recovers the creation time encoded in a version
// identifier. Falls back to the zero time for identifiers that predate the
// current format.
func ParseCreatedAt(id string) time.Time {
	ts, _, _ := strings.Cut(id, "-")
	t, err := time.Parse("20060102150405", ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
