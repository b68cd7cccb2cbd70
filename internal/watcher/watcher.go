// Package watcher keeps the symbol index current while files change on
// disk. Events are debounced so a save storm from a formatter run turns
// into one rescan per file.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/index"
)

// Watcher monitors the project tree and feeds changed files to the
// scanner. New directories are watched as they appear.
type Watcher struct {
	fsw       *fsnotify.Watcher
	cfg       *config.Config
	scanner   *index.Scanner
	debouncer *debouncer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg *config.Config, scanner *index.Scanner) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		cfg:     cfg,
		scanner: scanner,
	}
	w.debouncer = newDebouncer(time.Duration(cfg.Index.WatchDebounceMs)*time.Millisecond, w.flush)
	return w, nil
}

// Start adds recursive watches under the project root and begins
// processing events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.cfg.Project.Root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.processEvents(ctx)

	debug.LogWatcher("watching %s", w.cfg.Project.Root)
	return nil
}

// Stop shuts the watcher down and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsw.Close()
	w.wg.Wait()
	w.debouncer.stop()
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		// Symlink cycles would walk forever.
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
		if err := w.fsw.Add(path); err != nil {
			debug.LogWatcher("cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) excludedDir(path string) bool {
	rel, err := filepath.Rel(w.cfg.Project.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Exclude {
		dirPattern := strings.TrimSuffix(pattern, "/**")
		if ok, err := doublestar.Match(dirPattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatcher("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if w.matchesInclude(path) {
			w.debouncer.add(path, true)
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.excludedDir(path) {
			if err := w.fsw.Add(path); err != nil {
				debug.LogWatcher("cannot watch new dir %s: %v", path, err)
			}
		}
		return
	}
	if !w.matchesInclude(path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		w.debouncer.add(path, false)
	}
}

func (w *Watcher) matchesInclude(path string) bool {
	rel, err := filepath.Rel(w.cfg.Project.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return false
		}
	}
	for _, pattern := range w.cfg.Include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// flush applies one debounced batch: removed paths leave the index,
// everything else is rescanned.
func (w *Watcher) flush(batch map[string]bool) {
	start := time.Now()
	for path, removed := range batch {
		if removed {
			w.scanner.Remove(path)
			continue
		}
		if err := w.scanner.ScanPath(path); err != nil {
			debug.LogWatcher("rescan of %s failed: %v", path, err)
		}
	}
	debug.LogWatcher("processed %d events in %s", len(batch), time.Since(start))
}

// debouncer coalesces per-path events; the latest event for a path wins.
type debouncer struct {
	mu      sync.Mutex
	events  map[string]bool // path → removed
	delay   time.Duration
	timer   *time.Timer
	onFlush func(map[string]bool)
}

func newDebouncer(delay time.Duration, onFlush func(map[string]bool)) *debouncer {
	return &debouncer{
		events:  make(map[string]bool),
		delay:   delay,
		onFlush: onFlush,
	}
}

func (d *debouncer) add(path string, removed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[path] = removed
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	batch := d.events
	d.events = make(map[string]bool)
	d.mu.Unlock()
	if len(batch) > 0 {
		d.onFlush(batch)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
