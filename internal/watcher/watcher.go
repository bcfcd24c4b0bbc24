package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"codepad/internal/logging"
)

// EventType represents the type of file system event
type EventType string

const (
	EventCreate EventType = "create"
	EventModify EventType = "modify"
	EventDelete EventType = "delete"
	EventRename EventType = "rename"
)

// Event represents a file system event. Path is slash separated and
// relative to the watched root.
type Event struct {
	Path string
	Type EventType
}

// Watcher watches a directory tree for file system events with per-path
// debouncing. Directories created after Start are watched as well.
type Watcher struct {
	root       string
	debounce   time.Duration
	callback   func(Event)
	skip       func(rel string) bool
	watcher    *fsnotify.Watcher
	done       chan struct{}
	started    bool
	closed     bool
	mu         sync.Mutex
	debouncer  map[string]*time.Timer
	debounceMu sync.Mutex
	log        *zap.Logger
}

// New creates a new Watcher for root and every directory beneath it
func New(root string, debounce time.Duration, callback func(Event)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:      root,
		debounce:  debounce,
		callback:  callback,
		watcher:   watcher,
		done:      make(chan struct{}),
		debouncer: make(map[string]*time.Timer),
		log:       logging.Named("watcher"),
	}

	if err := w.addTree(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch path %s: %w", root, err)
	}

	return w, nil
}

// Skip installs a filter; events for which skip returns true are dropped
// before debouncing.
func (w *Watcher) Skip(skip func(rel string) bool) {
	w.mu.Lock()
	w.skip = skip
	w.mu.Unlock()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func ignoredDir(name string) bool {
	return name == "node_modules" || name == ".git"
}

// Start starts watching for events
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	if w.started {
		return fmt.Errorf("watcher already started")
	}

	w.started = true

	go w.watch()

	return nil
}

// Close stops watching and cleans up resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if w.started {
		close(w.done)
	}

	// Cancel all pending debounce timers
	w.debounceMu.Lock()
	for _, timer := range w.debouncer {
		timer.Stop()
	}
	w.debouncer = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

// watch is the main event loop
func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.String("root", w.root), zap.Error(err))

		case <-w.done:
			return
		}
	}
}

// handleEvent processes a fsnotify event with debouncing
func (w *Watcher) handleEvent(event fsnotify.Event) {
	var eventType EventType

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ignoredDir(info.Name()) {
			if err := w.addTree(event.Name); err != nil {
				w.log.Debug("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventModify
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	w.mu.Lock()
	skip := w.skip
	w.mu.Unlock()
	if skip != nil && skip(rel) {
		return
	}

	w.debounceEvent(Event{Path: rel, Type: eventType})
}

// debounceEvent debounces events for the same file
func (w *Watcher) debounceEvent(e Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[e.Path]; exists {
		timer.Stop()
	}

	w.debouncer[e.Path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debouncer, e.Path)
		w.debounceMu.Unlock()

		w.callback(e)
	})
}
