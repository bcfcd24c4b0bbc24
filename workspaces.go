// workspaces.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codepad/internal/database"
	"codepad/internal/store"
	"codepad/internal/template"
	"codepad/internal/tree"
)

const settingSuggestEnabled = "suggest.enabled"

var (
	errNoCatalog     = errors.New("store backend keeps no workspace catalog")
	errOpenWorkspace = errors.New("cannot delete the open workspace")
)

// catalog returns the workspace listing kept next to the SQLite store.
func catalog(b store.Backend) (*database.Database, error) {
	sq, ok := b.(*store.SQLite)
	if !ok {
		return nil, errNoCatalog
	}
	return sq.DB(), nil
}

// createWorkspace scaffolds a new workspace from a template and stores it as
// its first snapshot.
func createWorkspace(ctx context.Context, b store.Backend, reg *template.Registry, name, tmpl string) (*database.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("workspace name must not be empty")
	}
	root, err := reg.Scaffold(ctx, tmpl)
	if err != nil {
		return nil, err
	}
	data, err := tree.Marshal(root)
	if err != nil {
		return nil, err
	}

	ws := &database.Workspace{ID: uuid.NewString(), Name: name, Template: strings.ToUpper(tmpl)}
	if err := b.Save(ctx, ws.ID, data); err != nil {
		return nil, fmt.Errorf("store workspace %s: %w", ws.ID, err)
	}
	if db, err := catalog(b); err == nil {
		if err := db.SaveWorkspace(ws); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// ===== Workspace Catalog Bindings =====

func (a *App) ListWorkspaces() ([]*database.Workspace, error) {
	db, err := catalog(a.backend)
	if err != nil {
		return nil, err
	}
	return db.ListWorkspaces()
}

// CreateWorkspace scaffolds a new workspace. The open workspace is not
// changed.
func (a *App) CreateWorkspace(ctx context.Context, name, tmpl string) (*database.Workspace, error) {
	ws, err := createWorkspace(ctx, a.backend, a.templates, name, tmpl)
	if err != nil {
		return nil, err
	}
	a.log.Info("workspace created", zap.String("id", ws.ID), zap.String("template", ws.Template))
	return ws, nil
}

// DeleteWorkspace drops another workspace with all of its revisions.
func (a *App) DeleteWorkspace(id string) error {
	if id == a.workspace.ID() {
		return errOpenWorkspace
	}
	db, err := catalog(a.backend)
	if err != nil {
		return err
	}
	if err := db.DeleteWorkspace(id); err != nil {
		return err
	}
	a.log.Info("workspace deleted", zap.String("id", id))
	return nil
}

// storedSuggestionsEnabled returns the last toggle the user made, if the
// catalog remembers one.
func (a *App) storedSuggestionsEnabled() (bool, bool) {
	db, err := catalog(a.backend)
	if err != nil {
		return false, false
	}
	v, err := db.GetSetting(settingSuggestEnabled)
	if err != nil {
		return false, false
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return on, true
}

func (a *App) rememberSuggestionsEnabled(on bool) {
	db, err := catalog(a.backend)
	if err != nil {
		return
	}
	if err := db.SaveSetting(settingSuggestEnabled, strconv.FormatBool(on)); err != nil {
		a.log.Warn("remember suggestion toggle failed", zap.Error(err))
	}
}
