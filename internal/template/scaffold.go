// Package template builds starter project trees from template directories
// on disk.
package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"codepad/internal/logging"
	"codepad/internal/tree"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrEmptyTemplate   = errors.New("template has no files")
)

// DefaultMaxFileSize is the largest file copied into a scaffold.
const DefaultMaxFileSize = 1 << 20

var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	".vscode":      true,
	".idea":        true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

var skippedFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	".DS_Store":         true,
}

// Registry maps template names to directories.
type Registry struct {
	dirs        map[string]string
	maxFileSize int64
	log         *zap.Logger
}

// NewRegistry takes template names (case-insensitive) mapped to directories.
func NewRegistry(dirs map[string]string) *Registry {
	r := &Registry{
		dirs:        make(map[string]string, len(dirs)),
		maxFileSize: DefaultMaxFileSize,
		log:         logging.Named("template"),
	}
	for name, dir := range dirs {
		r.dirs[strings.ToUpper(name)] = dir
	}
	return r
}

// SetMaxFileSize changes the per-file size limit.
func (r *Registry) SetMaxFileSize(n int64) {
	r.maxFileSize = n
}

// Names lists the registered templates in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.dirs))
	for name := range r.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scaffold builds the starter tree for a named template.
func (r *Registry) Scaffold(ctx context.Context, name string) (*tree.Folder, error) {
	dir, ok := r.dirs[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	root, err := FromDir(ctx, dir, r.maxFileSize)
	if err != nil {
		return nil, err
	}
	r.log.Info("template scaffolded",
		zap.String("template", name),
		zap.Int("nodes", tree.Count(root)))
	return root, nil
}

// FromDir walks dir and returns its files as a tree rooted at a folder named
// tree.RootName. Files larger than maxSize or not valid UTF-8 are skipped.
func FromDir(ctx context.Context, dir string, maxSize int64) (*tree.Folder, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template dir %s: not a directory", dir)
	}

	root := &tree.Folder{Name: tree.RootName}
	folders := map[string]*tree.Folder{".": root}
	files := 0

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		parent := folders[filepath.Dir(rel)]
		if parent == nil {
			return nil
		}

		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			f := &tree.Folder{Name: d.Name()}
			parent.Items = append(parent.Items, f)
			folders[rel] = f
			return nil
		}
		if !d.Type().IsRegular() || skippedFiles[d.Name()] {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if maxSize > 0 && fi.Size() > maxSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !utf8.Valid(data) {
			return nil
		}
		name, ext := tree.SplitFileName(d.Name())
		parent.Items = append(parent.Items, &tree.File{Name: name, Extension: ext, Content: string(data)})
		files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scaffold %s: %w", dir, err)
	}
	if files == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTemplate, dir)
	}
	return root, nil
}
