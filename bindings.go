// bindings.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codepad/internal/session"
	"codepad/internal/store"
	"codepad/internal/suggest"
	"codepad/internal/tree"
)

// Every exported method of App is callable over websocket RPC. Paths are
// slash-joined strings, e.g. "src/components/App.tsx".

var errNoHistory = errors.New("store backend keeps no history")

// ===== Workspace Bindings =====

// WorkspaceInfo summarizes the loaded workspace.
type WorkspaceInfo struct {
	ID          string `json:"id"`
	Template    string `json:"template,omitempty"`
	Store       string `json:"store"`
	Nodes       int    `json:"nodes"`
	Sessions    int    `json:"sessions"`
	Unpersisted bool   `json:"unpersisted"`
}

func (a *App) GetWorkspaceInfo() WorkspaceInfo {
	return WorkspaceInfo{
		ID:          a.workspace.ID(),
		Template:    a.config.Workspace.Template,
		Store:       a.config.Store.Backend,
		Nodes:       tree.Count(a.workspace.Tree()),
		Sessions:    a.workspace.Sessions().Len(),
		Unpersisted: a.workspace.Unpersisted(),
	}
}

// GetTree returns the tree document in its wire form.
func (a *App) GetTree() (json.RawMessage, error) {
	return tree.Marshal(a.workspace.Tree())
}

// FlushWorkspace retries persistence of a tree change that failed to save.
func (a *App) FlushWorkspace(ctx context.Context) error {
	return a.workspace.Flush(ctx)
}

// ListTemplates returns the configured template names.
func (a *App) ListTemplates() []string {
	return a.templates.Names()
}

// ListRevisions returns the newest stored snapshots of the workspace.
func (a *App) ListRevisions(ctx context.Context, limit int) ([]store.Revision, error) {
	h, ok := a.backend.(store.Historian)
	if !ok {
		return nil, errNoHistory
	}
	return h.History(ctx, a.workspace.ID(), limit)
}

// GetRevisionTree returns an older snapshot's tree document.
func (a *App) GetRevisionTree(ctx context.Context, revision string) (json.RawMessage, error) {
	h, ok := a.backend.(store.Historian)
	if !ok {
		return nil, errNoHistory
	}
	data, err := h.LoadRevision(ctx, a.workspace.ID(), revision)
	if err != nil {
		return nil, err
	}
	root, err := tree.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return tree.Marshal(root)
}

// ===== File Session Bindings =====

// OpenFile opens a file and makes it the suggestion engine's document.
func (a *App) OpenFile(path string) (session.Session, error) {
	s, err := a.workspace.Open(tree.ParsePath(path))
	if err != nil {
		return session.Session{}, err
	}
	a.engine.SetDocument(s.Path.Base(), s.Live, suggest.Position{})
	return s, nil
}

// ActivateFile switches the editor to an already open session.
func (a *App) ActivateFile(id string) (session.Session, error) {
	s, err := a.workspace.Sessions().Activate(id)
	if err != nil {
		return session.Session{}, err
	}
	a.engine.SetDocument(s.Path.Base(), s.Live, suggest.Position{})
	return s, nil
}

func (a *App) ListSessions() []session.Session {
	return a.workspace.Sessions().List()
}

// EditFile replaces a session's live content. When the session is the
// active one the suggestion engine follows the new text and drops any
// displayed suggestion.
func (a *App) EditFile(id, content string) (session.Session, error) {
	s, err := a.workspace.Edit(id, content)
	if err != nil {
		return session.Session{}, err
	}
	if active, ok := a.workspace.Sessions().Active(); ok && active.ID == id {
		a.engine.Replace(content)
	}
	return s, nil
}

func (a *App) CloseFile(id string) error {
	return a.withActive(func() error {
		return a.workspace.Close(id)
	})
}

// SaveFileResult is the outcome of one save.
type SaveFileResult struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Status       string `json:"status"`
	RuntimeError string `json:"runtime_error,omitempty"`
}

func (a *App) SaveFile(ctx context.Context, id string) (SaveFileResult, error) {
	res, err := a.workspace.Save(ctx, id)
	if err != nil {
		return SaveFileResult{}, err
	}
	out := SaveFileResult{ID: res.ID, Path: res.Path, Status: string(res.Status)}
	if res.RuntimeErr != nil {
		out.RuntimeError = res.RuntimeErr.Error()
	}
	return out, nil
}

// SaveAllResult summarizes a save of every dirty session.
type SaveAllResult struct {
	Saved   int               `json:"saved"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (a *App) SaveAllFiles(ctx context.Context) SaveAllResult {
	res := a.workspace.SaveAll(ctx)
	out := SaveAllResult{Saved: res.Saved, Skipped: res.Skipped, Failed: res.Failed}
	if len(res.Errors) > 0 {
		out.Errors = make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			out.Errors[id] = err.Error()
		}
	}
	return out
}

// ===== Structural Bindings =====

// Structural edits can open, close or re-key the active session. The
// suggestion engine is moved to whatever document is active afterwards.

func (a *App) AddFile(ctx context.Context, parent, name, ext, content string) (string, error) {
	var p tree.Path
	err := a.withActive(func() (err error) {
		p, err = a.workspace.AddFile(ctx, tree.ParsePath(parent), name, ext, content)
		return err
	})
	return p.String(), err
}

func (a *App) AddFolder(ctx context.Context, parent, name string) (string, error) {
	p, err := a.workspace.AddFolder(ctx, tree.ParsePath(parent), name)
	return p.String(), err
}

func (a *App) DeleteFile(ctx context.Context, path string) error {
	return a.withActive(func() error {
		return a.workspace.DeleteFile(ctx, tree.ParsePath(path))
	})
}

func (a *App) DeleteFolder(ctx context.Context, path string) error {
	return a.withActive(func() error {
		return a.workspace.DeleteFolder(ctx, tree.ParsePath(path))
	})
}

func (a *App) RenameFile(ctx context.Context, path, name, ext string) (string, error) {
	var p tree.Path
	err := a.withActive(func() (err error) {
		p, err = a.workspace.RenameFile(ctx, tree.ParsePath(path), name, ext)
		return err
	})
	return p.String(), err
}

func (a *App) RenameFolder(ctx context.Context, path, name string) (string, error) {
	var p tree.Path
	err := a.withActive(func() (err error) {
		p, err = a.workspace.RenameFolder(ctx, tree.ParsePath(path), name)
		return err
	})
	return p.String(), err
}

// withActive runs fn and, if the active document changed, points the
// suggestion engine at the new one (or at an empty document). A session
// that only moved with a renamed folder is the same document.
func (a *App) withActive(fn func() error) error {
	before, had := a.workspace.Sessions().Active()
	err := fn()
	after, has := a.workspace.Sessions().Active()
	switch {
	case !has:
		if had {
			a.engine.SetDocument("", "", suggest.Position{})
		}
	case !had || !sameDocument(before, after):
		a.engine.SetDocument(after.Path.Base(), after.Live, suggest.Position{})
	}
	return err
}

func sameDocument(a, b session.Session) bool {
	return a.OpenedAt.Equal(b.OpenedAt) && a.Path.Base() == b.Path.Base() && a.Live == b.Live
}

// ===== Runtime Bindings =====

// ReadRuntimeFile returns a file as the running project sees it, including
// files the project generated itself.
func (a *App) ReadRuntimeFile(path string) (string, error) {
	return a.sandbox.ReadFile(path)
}

// ===== Suggestion Bindings =====

func (a *App) GetSuggestionState() suggest.State {
	return a.engine.State()
}

// SetSuggestionsEnabled turns suggestions on or off. The choice outlives
// restarts when the store keeps a catalog.
func (a *App) SetSuggestionsEnabled(on bool) {
	a.engine.SetEnabled(on)
	a.rememberSuggestionsEnabled(on)
}

func (a *App) ToggleSuggestions() bool {
	on := a.engine.Toggle()
	a.rememberSuggestionsEnabled(on)
	return on
}

// CursorMoved reports a cursor move without an edit.
func (a *App) CursorMoved(pos suggest.Position) {
	a.engine.CursorMoved(pos)
}

// ContentChanged reports an edit of the active document. The live content
// of the active session follows the edit.
func (a *App) ContentChanged(ch suggest.Change) error {
	a.engine.ContentChanged(ch)
	if s, ok := a.workspace.Sessions().Active(); ok {
		if _, err := a.workspace.Edit(s.ID, ch.Text); err != nil {
			return fmt.Errorf("update session %s: %w", s.ID, err)
		}
	}
	return nil
}

// RequestSuggestion asks for a suggestion now. An empty kind is derived
// from the code around the cursor.
func (a *App) RequestSuggestion(ctx context.Context, kind string) (suggest.Slot, error) {
	return a.engine.Request(ctx, suggest.Kind(kind))
}

// AcceptSuggestion returns the edit to apply at cursor. The edit is
// already applied to the active session's live content.
func (a *App) AcceptSuggestion(cursor suggest.Position) (suggest.Edit, error) {
	edit, err := a.engine.Accept(cursor)
	if err != nil {
		return suggest.Edit{}, err
	}
	if s, ok := a.workspace.Sessions().Active(); ok {
		if _, err := a.workspace.Edit(s.ID, suggest.ApplyEdit(s.Live, edit)); err != nil {
			return edit, fmt.Errorf("update session %s: %w", s.ID, err)
		}
	}
	return edit, nil
}

func (a *App) RejectSuggestion() bool {
	return a.engine.Reject()
}
