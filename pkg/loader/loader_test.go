package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

func setup(t *testing.T) (*Loader, string) {
	t.Helper()
	root := t.TempDir()

	write := func(name, domain, description string, tags []string) {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		content := "---\nname: " + name + "\ndescription: " + description + "\ndomain: " + domain + "\n"
		if len(tags) > 0 {
			content += "tags:\n"
			for _, tag := range tags {
				content += "  - " + tag + "\n"
			}
		}
		content += "---\n\n# " + name + "\n\n## Execution Steps\n\n1. Step one\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, skills.SkillFileName), []byte(content), 0o644))
	}

	write("log-analyzer", "devops", "Analyze service logs", []string{"logs"})
	write("test-writer", "testing", "Write table tests", []string{"go", "tests"})
	write("doc-polisher", "writing", "Polish documentation", nil)

	return New(root, index.New(root)), root
}

func TestLoadAllLevel1(t *testing.T) {
	l, _ := setup(t)
	entries, err := l.LoadAllLevel1(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// index order: sorted by name
	assert.Equal(t, "doc-polisher", entries[0].Name)
	assert.Equal(t, "log-analyzer", entries[1].Name)
	assert.Equal(t, "test-writer", entries[2].Name)
}

func TestSearchLevel1(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	t.Run("substring on name", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "analyzer", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "log-analyzer", got[0].Name)
	})

	t.Run("case-insensitive description match", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "TABLE TESTS", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "test-writer", got[0].Name)
	})

	t.Run("tag match", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "logs", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("domain filter", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "", skills.DomainWriting)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "doc-polisher", got[0].Name)
	})

	t.Run("query and domain combined", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "tests", skills.DomainDevops)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("glob pattern", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "*-writer", "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "test-writer", got[0].Name)
	})

	t.Run("empty query matches all", func(t *testing.T) {
		got, err := l.SearchLevel1(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestLoadLevel2(t *testing.T) {
	l, root := setup(t)
	ctx := context.Background()

	scriptsDir := filepath.Join(root, "log-analyzer", skills.ScriptsDir)
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "scan.sh"), []byte("#!/bin/sh\n"), 0o755))

	got, err := l.LoadLevel2(ctx, "log-analyzer")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "log-analyzer", got.Doc.Name)
	assert.Equal(t, []string{"Step one"}, got.Doc.ExecutionSteps)
	assert.Equal(t, []string{"scripts/scan.sh"}, got.Scripts)
}

func TestLoadLevel2ReferenceStableUntilInvalidation(t *testing.T) {
	l, root := setup(t)
	ctx := context.Background()

	first, err := l.LoadLevel2(ctx, "test-writer")
	require.NoError(t, err)
	second, err := l.LoadLevel2(ctx, "test-writer")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated loads return the identical cached value")

	// a disk edit is invisible until explicit invalidation
	manifest := filepath.Join(root, "test-writer", skills.SkillFileName)
	require.NoError(t, os.WriteFile(manifest, []byte(`---
name: test-writer
description: changed on disk
---

# Changed
`), 0o644))

	stale, err := l.LoadLevel2(ctx, "test-writer")
	require.NoError(t, err)
	assert.Same(t, first, stale)

	l.Invalidate("test-writer")
	reloaded, err := l.LoadLevel2(ctx, "test-writer")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, "changed on disk", reloaded.Doc.Description)
}

func TestLoadLevel2NonexistentSkill(t *testing.T) {
	l, _ := setup(t)
	got, err := l.LoadLevel2(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidateAll(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	first, err := l.LoadLevel2(ctx, "doc-polisher")
	require.NoError(t, err)

	l.InvalidateAll()
	second, err := l.LoadLevel2(ctx, "doc-polisher")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
