package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFilePreservesMode(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "run.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0o755))

	dst := filepath.Join(tmpDir, "nested", "run.sh")
	require.NoError(t, CopyFile(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))
}

func TestCopyFileMissingSource(t *testing.T) {
	err := CopyFile("/does/not/exist", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/does/not/exist")
}

func TestCopyDirSkip(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "scripts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "versions", "v1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("# S\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "scripts", "a.sh"), []byte("a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "versions", "v1", "SKILL.md"), []byte("old"), 0o644))

	dst := filepath.Join(tmpDir, "dst")
	require.NoError(t, CopyDirSkip(src, dst, "versions"))

	assert.FileExists(t, filepath.Join(dst, "SKILL.md"))
	assert.FileExists(t, filepath.Join(dst, "scripts", "a.sh"))
	_, err := os.Stat(filepath.Join(dst, "versions"))
	assert.True(t, os.IsNotExist(err))
}
