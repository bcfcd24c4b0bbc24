// Package runtimefs mirrors the project tree into a local directory that a
// dev server or test runner can execute from.
package runtimefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"codepad/internal/logging"
	"codepad/internal/watcher"
)

// ErrOutsideRoot is returned for paths that would escape the sandbox.
var ErrOutsideRoot = errors.New("path escapes sandbox root")

// echoWindow is how long after our own write a watcher event for the same
// path is treated as its echo.
const echoWindow = 2 * time.Second

// Sandbox is a directory-backed runtime filesystem.
type Sandbox struct {
	root string
	log  *zap.Logger

	mu     sync.Mutex
	writes map[string]time.Time
}

// New creates the sandbox directory if needed.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	return &Sandbox{
		root:   abs,
		log:    logging.Named("runtimefs"),
		writes: make(map[string]time.Time),
	}, nil
}

// Root returns the absolute sandbox directory.
func (s *Sandbox) Root() string {
	return s.root
}

// resolve maps a slash separated tree path to a file under root.
func (s *Sandbox) resolve(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return filepath.Join(s.root, local), nil
}

func (s *Sandbox) remember(rel string) {
	s.mu.Lock()
	s.writes[rel] = time.Now()
	s.mu.Unlock()
}

// ownWrite reports whether rel was written by the sandbox itself within the
// echo window.
func (s *Sandbox) ownWrite(rel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.writes[rel]
	if !ok {
		return false
	}
	if time.Since(at) > echoWindow {
		delete(s.writes, rel)
		return false
	}
	return true
}

// Mount replaces the sandbox contents with files (path -> content).
func (s *Sandbox) Mount(ctx context.Context, files map[string]string) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read sandbox: %w", err)
	}
	for _, e := range entries {
		if e.Name() == "node_modules" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("clear sandbox: %w", err)
		}
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.write(p, files[p]); err != nil {
			return err
		}
	}
	s.log.Debug("sandbox mounted", zap.String("root", s.root), zap.Int("files", len(paths)))
	return nil
}

// WriteFile creates or replaces one file, creating parent directories.
func (s *Sandbox) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(path, content)
}

func (s *Sandbox) write(rel, content string) error {
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", rel, err)
	}
	s.remember(rel)
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// ReadFile returns the content of one file.
func (s *Sandbox) ReadFile(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Remove deletes a file or a directory tree. Missing paths are not an error.
func (s *Sandbox) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	s.remember(path)
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Watch reports changes made inside the sandbox by something other than the
// sandbox itself, such as a build step emitting files.
func (s *Sandbox) Watch(debounce time.Duration, fn func(watcher.Event)) (*watcher.Watcher, error) {
	w, err := watcher.New(s.root, debounce, fn)
	if err != nil {
		return nil, err
	}
	w.Skip(s.ownWrite)
	if err := w.Start(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
