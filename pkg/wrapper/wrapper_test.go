package wrapper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

func newShimService(t *testing.T) (*ShimService, string, string) {
	t.Helper()
	root := t.TempDir()
	binDir := filepath.Join(t.TempDir(), "bin")
	return NewShimService(root, binDir), root, binDir
}

func addScript(t *testing.T, root, skill, script string) {
	t.Helper()
	dir := filepath.Join(root, skill, skills.ScriptsDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, script), []byte("#!/bin/sh\necho hi\n"), 0o755))
}

func TestInstallIfMissing(t *testing.T) {
	svc, root, binDir := newShimService(t)
	addScript(t, root, "log-analyzer", "scan.sh")
	addScript(t, root, "log-analyzer", "report.py")

	result, err := svc.InstallIfMissing(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"log-analyzer-scan", "log-analyzer-report"}, result.Installed)
	assert.Empty(t, result.Errors)

	data, err := os.ReadFile(filepath.Join(binDir, "log-analyzer-scan"))
	require.NoError(t, err)
	assert.Contains(t, string(data), marker)
	assert.Contains(t, string(data), filepath.Join(root, "log-analyzer", skills.ScriptsDir, "scan.sh"))

	info, err := os.Stat(filepath.Join(binDir, "log-analyzer-scan"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)
}

func TestInstallIfMissingSkipsExisting(t *testing.T) {
	svc, root, _ := newShimService(t)
	addScript(t, root, "tidy", "run.sh")

	_, err := svc.InstallIfMissing(context.Background())
	require.NoError(t, err)

	result, err := svc.InstallIfMissing(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Installed)
	assert.Equal(t, []string{"tidy-run"}, result.Skipped)
}

func TestInstallIfMissingIgnoresHiddenDirs(t *testing.T) {
	svc, root, _ := newShimService(t)
	addScript(t, root, ".staging-abc", "sneaky.sh")

	result, err := svc.InstallIfMissing(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Installed)
}

func TestRemoveOrphans(t *testing.T) {
	svc, root, binDir := newShimService(t)
	addScript(t, root, "keeper", "run.sh")
	addScript(t, root, "goner", "run.sh")

	_, err := svc.InstallIfMissing(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "goner")))

	result, err := svc.RemoveOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"goner-run"}, result.Removed)

	_, statErr := os.Stat(filepath.Join(binDir, "keeper-run"))
	assert.NoError(t, statErr)
}

func TestRemoveOrphansLeavesUnmanagedFiles(t *testing.T) {
	svc, _, binDir := newShimService(t)
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	foreign := filepath.Join(binDir, "hand-written")
	require.NoError(t, os.WriteFile(foreign, []byte("#!/bin/sh\necho mine\n"), 0o755))

	result, err := svc.RemoveOrphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Equal(t, []string{"hand-written"}, result.Skipped)

	_, statErr := os.Stat(foreign)
	assert.NoError(t, statErr)
}

func TestRemoveOrphansMissingBinDir(t *testing.T) {
	svc, _, _ := newShimService(t)
	result, err := svc.RemoveOrphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
}
