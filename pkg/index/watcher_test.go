package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

func TestWatcherPicksUpManifestEdit(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "watched", `---
name: watched
description: before
---

# Watched
`)

	ix := New(root)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(ix)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// watch the existing skill dir so the manifest write is observed
	require.NoError(t, w.watcher.Add(filepath.Join(root, "watched")))

	writeSkill(t, root, "watched", `---
name: watched
description: after
---

# Watched
`)

	require.Eventually(t, func() bool {
		idx, err := ix.Get(context.Background())
		if err != nil {
			return false
		}
		entry, ok := idx.Entry("watched")
		return ok && entry.Description == "after"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresHiddenEntries(t *testing.T) {
	root := t.TempDir()
	ix := New(root)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(ix)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// index writes themselves must not trigger update loops
	require.NoError(t, os.WriteFile(filepath.Join(root, ".scratch"), []byte("x"), 0o644))
	time.Sleep(500 * time.Millisecond)

	idx, err := ix.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Skills)
}

func TestWatcherSkillName(t *testing.T) {
	root := t.TempDir()
	ix := New(root)
	w := &Watcher{indexer: ix}

	assert.Equal(t, "alpha", w.skillName(filepath.Join(root, "alpha", skills.SkillFileName)))
	assert.Equal(t, "alpha", w.skillName(filepath.Join(root, "alpha")))
	assert.Equal(t, "", w.skillName(root))
	assert.Equal(t, "", w.skillName("/somewhere/else"))
}
