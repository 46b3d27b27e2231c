// Package wrapper keeps a bin directory of thin shell shims pointing at
// skill scripts, so installed skills can be invoked directly from a shell.
// The shipped implementation is best-effort: the manager logs wrapper
// failures and moves on.
package wrapper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// marker identifies shims owned by this tool; RemoveOrphans never touches
// files without it
const marker = "# managed by skillkit"

// Result reports what an install or cleanup pass did
type Result struct {
	Installed []string `json:"installed,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Service installs wrappers for skill scripts and prunes stale ones
type Service interface {
	// InstallIfMissing writes shims for every skill script that has none
	InstallIfMissing(ctx context.Context) (*Result, error)
	// RemoveOrphans deletes shims whose skill or script no longer exists
	RemoveOrphans(ctx context.Context) (*Result, error)
}

// ShimService is the shipped Service: one shell shim per skill script,
// named <skill>-<script-basename>
type ShimService struct {
	root   string
	binDir string
}

// NewShimService creates a shim service writing into binDir
func NewShimService(root, binDir string) *ShimService {
	return &ShimService{root: root, binDir: binDir}
}

// InstallIfMissing walks every skill's scripts/ directory and writes a shim
// for each script that has none. Existing shims are left alone.
func (s *ShimService) InstallIfMissing(ctx context.Context) (*Result, error) {
	result := &Result{}
	if err := os.MkdirAll(s.binDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create bin directory %s", s.binDir)
	}

	for _, target := range s.scriptTargets(ctx) {
		shimPath := filepath.Join(s.binDir, target.shimName)
		if _, err := os.Stat(shimPath); err == nil {
			result.Skipped = append(result.Skipped, target.shimName)
			continue
		}
		shim := fmt.Sprintf("#!/bin/sh\n%s\nexec %q \"$@\"\n", marker, target.scriptPath)
		if err := os.WriteFile(shimPath, []byte(shim), 0o755); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", target.shimName, err))
			continue
		}
		result.Installed = append(result.Installed, target.shimName)
	}
	return result, nil
}

// RemoveOrphans deletes managed shims whose target script vanished.
// Unmanaged files in the bin directory are never removed.
func (s *ShimService) RemoveOrphans(ctx context.Context) (*Result, error) {
	result := &Result{}
	dirEntries, err := os.ReadDir(s.binDir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read bin directory %s", s.binDir)
	}

	live := map[string]bool{}
	for _, target := range s.scriptTargets(ctx) {
		live[target.shimName] = true
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(s.binDir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", de.Name(), err))
			continue
		}
		if !strings.Contains(string(data), marker) {
			result.Skipped = append(result.Skipped, de.Name())
			continue
		}
		if live[de.Name()] {
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", de.Name(), err))
			continue
		}
		result.Removed = append(result.Removed, de.Name())
	}
	return result, nil
}

type shimTarget struct {
	shimName   string
	scriptPath string
}

// scriptTargets enumerates every executable-worthy script in the skills
// root. Unreadable skill directories are logged and skipped.
func (s *ShimService) scriptTargets(ctx context.Context) []shimTarget {
	var targets []shimTarget
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("root", s.root).Warn("failed to read skills root")
		return nil
	}

	for _, de := range dirEntries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		scriptsDir := filepath.Join(s.root, de.Name(), skills.ScriptsDir)
		scriptEntries, err := os.ReadDir(scriptsDir)
		if err != nil {
			continue
		}
		for _, se := range scriptEntries {
			if se.IsDir() {
				continue
			}
			targets = append(targets, shimTarget{
				shimName:   shimName(de.Name(), se.Name()),
				scriptPath: filepath.Join(scriptsDir, se.Name()),
			})
		}
	}
	return targets
}

// shimName builds the wrapper filename for a skill script, e.g.
// log-analyzer + scan.sh -> log-analyzer-scan
func shimName(skill, script string) string {
	base := strings.TrimSuffix(script, filepath.Ext(script))
	return skill + "-" + base
}
