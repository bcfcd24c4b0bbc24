package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) has(path string, types ...EventType) bool {
	for _, e := range r.snapshot() {
		if e.Path != path {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}

func startWatcher(t *testing.T, dir string, debounce time.Duration) (*Watcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	w, err := New(dir, debounce, rec.add)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)
	return w, rec
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/that/does/not/exist", 100*time.Millisecond, func(e Event) {})
	if err == nil {
		t.Fatal("New() should return error for invalid path")
	}
}

func TestWatcherCreateEvent(t *testing.T) {
	tmpDir := t.TempDir()
	_, rec := startWatcher(t, tmpDir, 50*time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// Wait for debounce and event processing
	time.Sleep(250 * time.Millisecond)

	// create and write collapse into whichever arrived last
	if !rec.has("test.txt", EventCreate, EventModify) {
		t.Errorf("Expected event for test.txt, got events: %+v", rec.snapshot())
	}
}

func TestWatcherDeleteEvent(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	_, rec := startWatcher(t, tmpDir, 50*time.Millisecond)
	rec.reset()

	if err := os.Remove(testFile); err != nil {
		t.Fatalf("Failed to delete test file: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	if !rec.has("test.txt", EventDelete) {
		t.Errorf("Expected delete event for test.txt, got events: %+v", rec.snapshot())
	}
}

func TestWatcherNestedDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "src"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	_, rec := startWatcher(t, tmpDir, 50*time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "src", "index.ts"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	if !rec.has("src/index.ts", EventCreate, EventModify) {
		t.Errorf("Expected event for src/index.ts, got events: %+v", rec.snapshot())
	}

	// directories created after start are picked up
	if err := os.MkdirAll(filepath.Join(tmpDir, "gen"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(tmpDir, "gen", "out.js"), []byte("y"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	if !rec.has("gen/out.js", EventCreate, EventModify) {
		t.Errorf("Expected event for gen/out.js, got events: %+v", rec.snapshot())
	}
}

func TestWatcherSkip(t *testing.T) {
	tmpDir := t.TempDir()
	w, rec := startWatcher(t, tmpDir, 50*time.Millisecond)
	w.Skip(func(rel string) bool { return rel == "ignored.txt" })

	os.WriteFile(filepath.Join(tmpDir, "ignored.txt"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "seen.txt"), []byte("b"), 0644)
	time.Sleep(250 * time.Millisecond)

	if rec.has("ignored.txt", EventCreate, EventModify) {
		t.Error("Expected skipped path to produce no event")
	}
	if !rec.has("seen.txt", EventCreate, EventModify) {
		t.Errorf("Expected event for seen.txt, got events: %+v", rec.snapshot())
	}
}

func TestWatcherDebouncing(t *testing.T) {
	tmpDir := t.TempDir()
	_, rec := startWatcher(t, tmpDir, 100*time.Millisecond)

	testFile := filepath.Join(tmpDir, "test.txt")
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(250 * time.Millisecond)

	if n := len(rec.snapshot()); n >= 10 {
		t.Errorf("Expected debouncing to reduce events, got %d events", n)
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := New(t.TempDir(), 100*time.Millisecond, func(e Event) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Calling Close again should not panic or error
	if err := w.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("Expected Start after Close to fail")
	}
}
