package index

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// debounceWindow coalesces bursts of filesystem events (editors typically
// emit several writes per save) into a single index update
const debounceWindow = 200 * time.Millisecond

// Watcher observes the skills root and feeds single-skill index updates to
// the Indexer when a manifest changes. It is optional: the index stays
// correct without it via explicit UpdateSkill calls after writes, the
// watcher only catches external edits.
type Watcher struct {
	indexer *Indexer
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    chan struct{}
}

// NewWatcher creates a watcher over the indexer's skills root
func NewWatcher(indexer *Indexer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filesystem watcher")
	}

	if err := fsw.Add(indexer.Root()); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch skills root %s", indexer.Root())
	}

	return &Watcher{
		indexer: indexer,
		watcher: fsw,
		pending: map[string]*time.Timer{},
		done:    make(chan struct{}),
	}, nil
}

// Start runs the event loop until the context is cancelled or Close is
// called
func (w *Watcher) Start(ctx context.Context) {
	log := logger.G(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("skills watcher error")
			}
		}
	}()
}

// handleEvent schedules a debounced index update for the affected skill
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := w.skillName(event.Name)
	if name == "" || strings.HasPrefix(name, ".") {
		return
	}

	// New skill directories need their own watch so manifest writes inside
	// them are observed
	if event.Op.Has(fsnotify.Create) {
		if filepath.Dir(event.Name) == w.indexer.Root() {
			_ = w.watcher.Add(event.Name)
		}
	}

	base := filepath.Base(event.Name)
	isManifest := base == skills.SkillFileName
	isSkillDir := filepath.Dir(event.Name) == w.indexer.Root()
	if !isManifest && !isSkillDir {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[name]; ok {
		timer.Stop()
	}
	w.pending[name] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		if err := w.indexer.UpdateSkill(ctx, name); err != nil {
			logger.G(ctx).WithError(err).WithField("skill", name).Warn("watcher index update failed")
		}
	})
}

// skillName maps an event path to the skill directory name it belongs to
func (w *Watcher) skillName(path string) string {
	rel, err := filepath.Rel(w.indexer.Root(), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return parts[0]
}

// Close stops the watcher and releases its resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	for name, timer := range w.pending {
		timer.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
