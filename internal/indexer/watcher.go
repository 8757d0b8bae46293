package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/debug"
	"github.com/structidx/sci/pkg/pathutil"
)

// Watcher monitors the project tree and fires a callback after a quiet
// period following file changes. The callback decides what to do (typically
// a non-blocking rebuild); the watcher itself never touches the index.
type Watcher struct {
	watcher    *fsnotify.Watcher
	cfg        *config.Config
	extensions map[string]bool
	debouncer  *eventDebouncer
	onChange   func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over cfg's root. onChange runs on the
// debouncer goroutine after each settled burst of events.
func NewWatcher(cfg *config.Config, extensions []string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:    fsw,
		cfg:        cfg,
		extensions: extSet,
		onChange:   onChange,
		ctx:        ctx,
		cancel:     cancel,
	}
	w.debouncer = newEventDebouncer(
		time.Duration(cfg.Index.WatchDebounceMs)*time.Millisecond, w.fire)
	return w, nil
}

// Start adds watches for every directory under the root and begins
// processing events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.cfg.Project.Root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	debug.LogIndexing("file watcher started for %s", w.cfg.Project.Root)
	return nil
}

// Stop cancels event processing and waits for goroutines to drain. Pending
// debounced events are dropped; the index is being torn down anyway.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.debouncer.stop()
	w.wg.Wait()
	return err
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	w.onChange()
}

// addWatches recursively watches directories, skipping excluded ones and
// guarding against symlink cycles by resolved path.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !info.IsDir() {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if w.excludedDir(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			debug.LogIndexing("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) relPath(path string) string {
	return pathutil.ToRelative(path, w.cfg.Project.Root)
}

func (w *Watcher) excludedDir(path string) bool {
	rel := w.relPath(path)
	if rel == "." {
		return false
	}
	for _, pattern := range w.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) excludedFile(path string) bool {
	rel := w.relPath(path)
	for _, pattern := range w.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Error("watcher", err, "file watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New directories need their own watch before files in them are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(path) {
				if err := w.watcher.Add(path); err != nil {
					debug.LogIndexing("failed to watch new directory %s: %v", path, err)
				}
			}
			return
		}
	}

	if !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return
	}
	if w.excludedFile(path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	debug.LogIndexing("change detected: %s (%v)", w.relPath(path), event.Op)
	w.debouncer.bump()
}

// eventDebouncer collapses a burst of events into one callback after a
// quiet period.
type eventDebouncer struct {
	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	fire     func()
	stopped  bool
}

func newEventDebouncer(debounce time.Duration, fire func()) *eventDebouncer {
	return &eventDebouncer{debounce: debounce, fire: fire}
}

// bump restarts the quiet-period timer.
func (d *eventDebouncer) bump() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.fire)
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
