// internal/workspace/structural.go
package workspace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"codepad/internal/metrics"
	"codepad/internal/tree"
)

// Structural edits apply locally first, then persist the whole tree in the
// background. A failed background write is reported and remembered (see
// Unpersisted) but the local change stays.

// AddFile creates a file under parent, opens it in the editor and mirrors it
// into the runtime.
func (c *Coordinator) AddFile(ctx context.Context, parent tree.Path, name, ext, content string) (tree.Path, error) {
	f := &tree.File{Name: name, Extension: ext, Content: content}
	path := parent.Child(f.DisplayName())

	if _, err := c.mutate("add-file", path, func(root *tree.Folder) (*tree.Folder, error) {
		return tree.Insert(root, parent, f)
	}); err != nil {
		return nil, err
	}

	if _, err := c.Open(path); err != nil {
		c.log.Warn("open new file failed", zap.String("path", path.String()), zap.Error(err))
	}
	if c.runtime != nil {
		c.writeRuntime(ctx, path.String(), content)
	}
	return path, nil
}

// AddFolder creates an empty folder under parent.
func (c *Coordinator) AddFolder(ctx context.Context, parent tree.Path, name string) (tree.Path, error) {
	path := parent.Child(name)
	if _, err := c.mutate("add-folder", path, func(root *tree.Folder) (*tree.Folder, error) {
		return tree.Insert(root, parent, &tree.Folder{Name: name})
	}); err != nil {
		return nil, err
	}
	return path, nil
}

// DeleteFile removes the file at path and force-closes its session.
func (c *Coordinator) DeleteFile(ctx context.Context, path tree.Path) error {
	return c.delete(ctx, "delete-file", path, tree.KindFile)
}

// DeleteFolder removes the folder at path with everything beneath it.
// Sessions of removed files are closed without saving.
func (c *Coordinator) DeleteFolder(ctx context.Context, path tree.Path) error {
	return c.delete(ctx, "delete-folder", path, tree.KindFolder)
}

func (c *Coordinator) delete(ctx context.Context, op string, path tree.Path, kind tree.Kind) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: cannot delete root", tree.ErrInvalidName)
	}
	if _, err := c.mutate(op, path, func(root *tree.Folder) (*tree.Folder, error) {
		node, err := tree.Lookup(root, path)
		if err != nil {
			return nil, err
		}
		if node.Kind() != kind {
			return nil, fmt.Errorf("%w: %s is a %s", tree.ErrNotFound, path, node.Kind())
		}
		out, _, err := tree.Remove(root, path.Parent(), node.Ref())
		return out, err
	}); err != nil {
		return err
	}

	if closed := c.sessions.CloseUnder(path); len(closed) > 0 {
		metrics.SetOpenSessions(c.sessions.Len())
		c.log.Info("closed sessions of deleted files", zap.Strings("ids", closed))
		c.notify.SessionsClosed(closed)
	}
	c.removeRuntime(ctx, path)
	return nil
}

// RenameFile renames the file at path. Its open session, if any, follows it.
func (c *Coordinator) RenameFile(ctx context.Context, path tree.Path, newName, newExt string) (tree.Path, error) {
	return c.rename(ctx, "rename-file", path, tree.KindFile, newName, newExt)
}

// RenameFolder renames the folder at path. Sessions beneath it follow.
func (c *Coordinator) RenameFolder(ctx context.Context, path tree.Path, newName string) (tree.Path, error) {
	return c.rename(ctx, "rename-folder", path, tree.KindFolder, newName, "")
}

func (c *Coordinator) rename(ctx context.Context, op string, path tree.Path, kind tree.Kind, newName, newExt string) (tree.Path, error) {
	base := newName
	if kind == tree.KindFile {
		base = tree.FileName(newName, newExt)
	}
	newPath := path.Parent().Child(base)

	root, err := c.mutate(op, newPath, func(root *tree.Folder) (*tree.Folder, error) {
		node, err := tree.Lookup(root, path)
		if err != nil {
			return nil, err
		}
		if len(path) > 0 && node.Kind() != kind {
			return nil, fmt.Errorf("%w: %s is a %s", tree.ErrNotFound, path, node.Kind())
		}
		return tree.Rename(root, path, newName, newExt)
	})
	if err != nil {
		return nil, err
	}

	moved, displaced := c.sessions.Rebind(path, newPath)
	if len(moved) > 0 {
		c.log.Debug("sessions rebound", zap.Any("moved", moved))
	}
	if len(displaced) > 0 {
		metrics.SetOpenSessions(c.sessions.Len())
		c.notify.SessionsClosed(displaced)
	}
	if !path.Equal(newPath) {
		c.removeRuntime(ctx, path)
		c.mirror(ctx, root, newPath)
	}
	return newPath, nil
}

// mutate applies fn to the current root under the commit lock, installs the
// result and schedules its persistence.
func (c *Coordinator) mutate(op string, path tree.Path, fn func(*tree.Folder) (*tree.Folder, error)) (*tree.Folder, error) {
	c.commitMu.Lock()
	root, _ := c.current()
	next, err := fn(root)
	if err != nil {
		c.commitMu.Unlock()
		c.log.Warn("structural edit rejected", zap.String("op", op), zap.String("path", path.String()), zap.Error(err))
		return nil, err
	}
	gen := c.swap(next)
	c.commitMu.Unlock()

	metrics.RecordStructuralOp(op)
	c.notify.TreeChanged(op, path.String())
	c.schedulePersist(next, gen)
	return next, nil
}

func (c *Coordinator) schedulePersist(root *tree.Folder, gen uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.persist(context.Background(), root, gen, true); err != nil {
			c.log.Error("tree persistence failed", zap.Uint64("generation", gen), zap.Error(err))
			c.notify.TreePersistFailed(err)
		}
	}()
}

func (c *Coordinator) removeRuntime(ctx context.Context, path tree.Path) {
	rm, ok := c.runtime.(RuntimeRemover)
	if !ok {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.runtimeTimeout)
	defer cancel()
	if err := rm.Remove(rctx, path.String()); err != nil {
		werr := &ExternalWriteError{Path: path.String(), Err: err}
		metrics.RecordRuntimeWriteFailure()
		c.log.Warn("runtime remove failed", zap.String("path", path.String()), zap.Error(err))
		c.notify.RuntimeWriteFailed(path.String(), werr)
	}
}

// mirror writes every file at or beneath path in root into the runtime.
func (c *Coordinator) mirror(ctx context.Context, root *tree.Folder, path tree.Path) {
	if c.runtime == nil {
		return
	}
	var failed []error
	for _, p := range tree.FilesUnder(root, path) {
		f, err := tree.LookupFile(root, p)
		if err != nil {
			continue
		}
		if err := c.writeRuntime(ctx, p.String(), f.Content); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		c.log.Warn("runtime mirror incomplete", zap.Error(errors.Join(failed...)))
	}
}
