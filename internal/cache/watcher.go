package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultWatchDebounce = 300 * time.Millisecond

type WatcherOptions struct {
	Debounce time.Duration
	// OnSession runs once per changed transcript after the debounce window.
	OnSession func(path string)
	// OnProjects runs when a transcript or project dir appears or goes away.
	OnProjects func()
	Log        io.Writer
}

// Watcher turns filesystem events under <claude-dir>/projects into cache
// invalidations. Only the projects dir and its direct subdirectories are
// watched; transcripts never live deeper.
type Watcher struct {
	fs          *fsnotify.Watcher
	projectsDir string
	opts        WatcherOptions

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewWatcher(projectsDir string, opts WatcherOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatchDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:          fw,
		projectsDir: filepath.Clean(projectsDir),
		opts:        opts,
		timers:      map[string]*time.Timer{},
	}
	if _, err := os.Stat(w.projectsDir); err != nil {
		w.logf("watch: %s not watched: %v", w.projectsDir, err)
		return w, nil
	}
	if err := fw.Add(w.projectsDir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.projectsDir, err)
	}
	entries, _ := os.ReadDir(w.projectsDir)
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(w.projectsDir, e.Name()))
		}
	}
	return w, nil
}

// Run delivers events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logf("watch: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	w.stopTimers()
	return w.fs.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	structural := ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0

	if filepath.Dir(name) == w.projectsDir {
		if ev.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(name); err == nil && info.IsDir() {
				w.add(name)
			}
		}
		if structural && w.opts.OnProjects != nil {
			w.opts.OnProjects()
		}
		return
	}

	if !strings.HasSuffix(name, ".jsonl") {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if structural && w.opts.OnProjects != nil {
		w.opts.OnProjects()
	}
	w.schedule(name)
}

// schedule restarts the debounce timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped && w.opts.OnSession != nil {
			w.opts.OnSession(path)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) add(dir string) {
	if err := w.fs.Add(dir); err != nil {
		w.logf("watch: add %s: %v", dir, err)
	}
}

func (w *Watcher) logf(format string, args ...any) {
	if w.opts.Log == nil {
		return
	}
	_, _ = fmt.Fprintf(w.opts.Log, format+"\n", args...)
}
