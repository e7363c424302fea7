// Package watch adapts fsnotify to a dirty-path contract: a stream of
// changed paths relative to the repository root, and a per-event flag for
// when .helix/helix.idx itself was touched by something other than this
// process. internal/repo.Repository.WatchAndSync is the consumer: it
// feeds ordinary paths into the Sync Engine's incremental refresh and
// treats an index-file change as a trigger for a full rebuild.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/helixvcs/helix/internal/index"
)

// Event is a single delivery from the watcher: a relative, forward-slash
// path that changed, and whether that path is the index file itself.
type Event struct {
	Path         string
	IndexChanged bool
}

// Watcher recursively watches a repository's worktree and delivers Events
// on a channel. Delivery is at-least-once; duplicates are expected and
// must be tolerated by consumers, per the contract.
type Watcher struct {
	repoRoot string
	fsw      *fsnotify.Watcher
	events   chan Event
	errors   chan error

	mu      sync.Mutex
	watched map[string]bool
}

// New starts watching repoRoot's worktree. Directories are registered
// recursively as they're discovered; fsnotify does not watch subtrees on
// its own. The .helix/objects and .helix/refs trees are skipped (they
// change only as a result of this process's own writes) but .helix/ itself
// stays watched so edits to helix.idx from another process are caught.
func New(repoRoot string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		repoRoot: repoRoot,
		fsw:      fsw,
		events:   make(chan Event, 64),
		errors:   make(chan error, 8),
		watched:  make(map[string]bool),
	}

	if err := w.addRecursive(repoRoot); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Events returns the channel of dirty-path notifications.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of watcher-internal errors (permission
// failures, exhausted inotify watches); these are surfaced, not fatal.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

func skipSubtree(rel string) bool {
	return rel == filepath.Join(".helix", "objects") || rel == filepath.Join(".helix", "refs")
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.repoRoot, path)
		if relErr == nil && skipSubtree(rel) {
			return filepath.SkipDir
		}
		return w.registerDir(path)
	})
}

func (w *Watcher) registerDir(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.watched[path] = true
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if rel, relErr := filepath.Rel(w.repoRoot, ev.Name); relErr == nil && !skipSubtree(rel) {
				w.registerDir(ev.Name)
			}
		}
	}

	rel, err := filepath.Rel(w.repoRoot, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return
	}

	select {
	case w.events <- Event{Path: rel, IndexChanged: rel == index.Path}:
	default:
	}
}
