package binding

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gladebind/internal/logging"
)

// ScriptWatcher watches every binding's script roots and reports which
// bindings need a rescan. It never touches the registry itself; the caller
// applies RescanScripts on its own goroutine.
type ScriptWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dirs        map[string]string // watched dir -> binding name
	roots       map[string]string // script root -> binding name
	waiting     map[string]string // missing script root -> binding name
	ancestors   map[string]bool   // existing dirs watched for a missing root
	pending     map[string]time.Time
	debounceDur time.Duration
	changes     chan string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closeOnce   sync.Once

	stats ScriptWatcherStats
}

// ScriptWatcherStats tracks watcher activity.
type ScriptWatcherStats struct {
	Events        int
	Notifications int
	Errors        int
	LastEventPath string
}

// NewScriptWatcher creates a watcher over the script roots of every binding
// currently in r.
func NewScriptWatcher(r *Registry, debounce time.Duration) (*ScriptWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	sw := &ScriptWatcher{
		watcher:     watcher,
		dirs:        make(map[string]string),
		roots:       make(map[string]string),
		waiting:     make(map[string]string),
		ancestors:   make(map[string]bool),
		pending:     make(map[string]time.Time),
		debounceDur: debounce,
		changes:     make(chan string, r.Count()+1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, b := range r.GetAll() {
		for _, root := range r.ScriptRoots(b.Name()) {
			sw.roots[filepath.Clean(root)] = b.Name()
		}
	}
	return sw, nil
}

// Changes delivers binding names whose scripts changed. It is closed when
// the watcher stops.
func (sw *ScriptWatcher) Changes() <-chan string {
	return sw.changes
}

// Start begins watching. A root that does not exist yet is picked up when it
// is created. It is non-blocking.
func (sw *ScriptWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true

	for root, name := range sw.roots {
		sw.watchRootLocked(root, name)
	}
	sw.mu.Unlock()

	go sw.run(ctx)
	return nil
}

// watchRootLocked watches root and its owner dirs. When root is missing it
// watches the nearest existing ancestor instead and reports false.
func (sw *ScriptWatcher) watchRootLocked(root, name string) bool {
	for {
		dir := nearestDir(root)
		if dir == root {
			break
		}
		if dir == "" {
			sw.waiting[root] = name
			return false
		}
		if !sw.ancestors[dir] {
			if err := sw.watcher.Add(dir); err != nil {
				logging.WatcherDebug("not watching %s: %v", dir, err)
				sw.waiting[root] = name
				return false
			}
			sw.ancestors[dir] = true
			logging.WatcherDebug("watching %s until %s exists", dir, root)
		}
		// Recheck in case a level appeared before the watch was in place.
		if nearestDir(root) == dir {
			sw.waiting[root] = name
			return false
		}
	}

	delete(sw.waiting, root)
	sw.addDirLocked(root, name)
	entries, err := os.ReadDir(root)
	if err != nil {
		return true
	}
	for _, e := range entries {
		if e.IsDir() {
			sw.addDirLocked(filepath.Join(root, e.Name()), name)
		}
	}
	return true
}

// pruneAncestorsLocked drops ancestor watches no missing root still needs.
func (sw *ScriptWatcher) pruneAncestorsLocked() {
	for dir := range sw.ancestors {
		needed := false
		for root := range sw.waiting {
			if within(root, dir) {
				needed = true
				break
			}
		}
		if needed {
			continue
		}
		delete(sw.ancestors, dir)
		if _, ok := sw.dirs[dir]; !ok {
			_ = sw.watcher.Remove(dir)
		}
	}
}

func (sw *ScriptWatcher) addDirLocked(dir, name string) {
	if _, ok := sw.dirs[dir]; ok {
		return
	}
	if err := sw.watcher.Add(dir); err != nil {
		logging.WatcherDebug("not watching %s: %v", dir, err)
		return
	}
	sw.dirs[dir] = name
	logging.WatcherDebug("watching %s for %s", dir, name)
}

// dropDirLocked forgets a watched dir that no longer exists.
func (sw *ScriptWatcher) dropDirLocked(dir string) {
	delete(sw.dirs, dir)
	// fsnotify may already have dropped the watch itself.
	_ = sw.watcher.Remove(dir)
	logging.WatcherDebug("stopped watching %s", dir)
}

// nearestDir returns path if it is a directory, else its closest existing
// ancestor directory, or "" if there is none.
func nearestDir(path string) string {
	for {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return ""
		}
		path = parent
	}
}

// within reports whether path lies strictly below dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stop stops the watcher and waits for its goroutine. It also releases a
// watcher that was never started.
func (sw *ScriptWatcher) Stop() {
	sw.mu.Lock()
	wasRunning := sw.running
	sw.running = false
	sw.mu.Unlock()

	if wasRunning {
		close(sw.stopCh)
		<-sw.doneCh
	}

	sw.closeOnce.Do(func() {
		if err := sw.watcher.Close(); err != nil {
			logging.WatcherError("closing watcher: %v", err)
		}
		logging.Watcher("script watcher stopped")
	})
}

func (sw *ScriptWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)
	defer close(sw.changes)

	tick := sw.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatcherError("watch error: %v", err)
			sw.mu.Lock()
			sw.stats.Errors++
			sw.mu.Unlock()
		case <-ticker.C:
			if !sw.flush(ctx) {
				return
			}
		}
	}
}

func (sw *ScriptWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	// A watched dir that went away must be watchable again once recreated.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if name, ok := sw.dirs[event.Name]; ok {
			if _, err := os.Stat(event.Name); err != nil {
				sw.dropDirLocked(event.Name)
				if _, isRoot := sw.roots[event.Name]; isRoot {
					for dir, owner := range sw.dirs {
						if owner == name && within(dir, event.Name) {
							sw.dropDirLocked(dir)
						}
					}
					sw.watchRootLocked(event.Name, name)
				}
				sw.markLocked(name, event)
			}
		}
	}

	if event.Op&fsnotify.Create != 0 && len(sw.waiting) > 0 {
		for root, name := range sw.waiting {
			if root != event.Name && !within(root, event.Name) {
				continue
			}
			if sw.watchRootLocked(root, name) {
				sw.markLocked(name, event)
			}
		}
		sw.pruneAncestorsLocked()
	}

	name, ok := sw.dirs[filepath.Dir(event.Name)]
	if !ok {
		return
	}
	// A new owner directory directly under a root gets its own watch.
	if event.Op&fsnotify.Create != 0 {
		if _, isRoot := sw.roots[filepath.Dir(event.Name)]; isRoot {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				sw.addDirLocked(event.Name, name)
			}
		}
	}
	sw.markLocked(name, event)
}

func (sw *ScriptWatcher) markLocked(name string, event fsnotify.Event) {
	sw.stats.Events++
	sw.stats.LastEventPath = event.Name
	sw.pending[name] = time.Now()
	logging.WatcherDebug("%s: %s", event.Op, event.Name)
}

// flush emits bindings whose events have settled. It returns false when the
// watcher is stopping.
func (sw *ScriptWatcher) flush(ctx context.Context) bool {
	sw.mu.Lock()
	now := time.Now()
	var ready []string
	for name, at := range sw.pending {
		if now.Sub(at) >= sw.debounceDur {
			ready = append(ready, name)
			delete(sw.pending, name)
		}
	}
	sw.stats.Notifications += len(ready)
	sw.mu.Unlock()

	for _, name := range ready {
		select {
		case sw.changes <- name:
		case <-ctx.Done():
			return false
		case <-sw.stopCh:
			return false
		}
	}
	return true
}

// Stats returns a snapshot of watcher activity.
func (sw *ScriptWatcher) Stats() ScriptWatcherStats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stats
}

// WatchedDirs returns the directories currently watched.
func (sw *ScriptWatcher) WatchedDirs() []string {
	return sw.watcher.WatchList()
}
