package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codepad/internal/config"
	"codepad/internal/suggest"
	"codepad/internal/tree"
	"codepad/internal/websocket"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWith(t, func(cfg *config.Config) { cfg.Store.Backend = "memory" })
}

func newTestAppWith(t *testing.T, configure func(*config.Config)) *App {
	t.Helper()

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{"model":"codellama:latest","response":"42","done":true}`)
	}))
	t.Cleanup(ollama.Close)

	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Workspace.Template = "REACT"
	cfg.Completion.BaseURL = ollama.URL
	cfg.Suggest.Debounce = time.Hour
	cfg.Suggest.RatePerSec = 0
	configure(cfg)

	tmpl := filepath.Join(cfg.TemplatesDir, "react")
	require.NoError(t, os.MkdirAll(filepath.Join(tmpl, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpl, "node_modules", "react"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "package.json"), []byte(`{"name":"app"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "src", "index.ts"), []byte("const x = "), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "node_modules", "react", "index.js"), []byte("x"), 0644))

	app := NewApp(cfg, zap.NewNop())
	require.NoError(t, app.startup(context.Background()))
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app
}

func TestApp_EditSuggestSave(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	info := app.GetWorkspaceInfo()
	assert.Equal(t, "default", info.ID)
	assert.Equal(t, 3, info.Nodes, "src, src/index.ts and package.json")

	s, err := app.OpenFile("src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "const x = ", s.Live)

	app.CursorMoved(suggest.Position{Line: 0, Column: 10})
	slot, err := app.RequestSuggestion(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "42", slot.Text)
	assert.Equal(t, suggest.Position{Line: 0, Column: 10}, slot.Anchor)

	edit, err := app.AcceptSuggestion(suggest.Position{Line: 0, Column: 10})
	require.NoError(t, err)
	assert.Equal(t, "const x = 42", suggest.ApplyEdit("const x = ", edit))

	require.NoError(t, app.ContentChanged(suggest.Change{
		At:       edit.At,
		Inserted: edit.Text,
		Text:     "const x = 42",
		Cursor:   edit.CursorAfter,
	}))
	sessions := app.ListSessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Dirty)

	res, err := app.SaveFile(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "saved", res.Status)
	assert.Empty(t, res.RuntimeError)

	content, err := app.ReadRuntimeFile("src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "const x = 42", content)

	raw, err := app.GetTree()
	require.NoError(t, err)
	root, err := tree.Unmarshal(raw)
	require.NoError(t, err)
	f, err := tree.LookupFile(root, tree.ParsePath("src/index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "const x = 42", f.Content)

	revs, err := app.ListRevisions(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, revs)
}

func TestApp_StructuralOpsOverRPC(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	r := websocket.NewRouter(app)

	out, err := r.Call(ctx, "AddFolder", []interface{}{"src", "components"})
	require.NoError(t, err)
	assert.Equal(t, "src/components", out)

	out, err = r.Call(ctx, "AddFile", []interface{}{"src/components", "Button", "tsx", "export {}"})
	require.NoError(t, err)
	assert.Equal(t, "src/components/Button.tsx", out)

	out, err = r.Call(ctx, "RenameFolder", []interface{}{"src/components", "ui"})
	require.NoError(t, err)
	assert.Equal(t, "src/ui", out)

	_, err = r.Call(ctx, "CursorMoved", []interface{}{map[string]interface{}{"line": float64(0), "column": float64(3)}})
	require.NoError(t, err)

	out, err = r.Call(ctx, "ListSessions", nil)
	require.NoError(t, err)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"src/ui/Button.tsx"`)

	_, err = r.Call(ctx, "DeleteFolder", []interface{}{"src/ui"})
	require.NoError(t, err)
	assert.Empty(t, app.ListSessions())

	_, err = r.Call(ctx, "DeleteFile", []interface{}{"src"})
	assert.Error(t, err, "src is a folder")

	assert.NotContains(t, r.Methods(), "startup")
}

// openWithSuggestion opens src/index.ts and leaves a suggestion displayed at
// the end of its first line.
func openWithSuggestion(t *testing.T, app *App) string {
	t.Helper()
	s, err := app.OpenFile("src/index.ts")
	require.NoError(t, err)
	app.CursorMoved(suggest.Position{Line: 0, Column: 10})
	_, err = app.RequestSuggestion(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, app.GetSuggestionState().Slot)
	return s.ID
}

func TestApp_EditFileDropsSuggestion(t *testing.T) {
	app := newTestApp(t)
	id := openWithSuggestion(t, app)

	_, err := app.EditFile(id, "const x = 1; foo()")
	require.NoError(t, err)
	assert.Nil(t, app.GetSuggestionState().Slot)

	_, err = app.AcceptSuggestion(suggest.Position{Line: 0, Column: 10})
	assert.ErrorIs(t, err, suggest.ErrNoSuggestion)

	sessions := app.ListSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "const x = 1; foo()", sessions[0].Live)
}

func TestApp_AcceptAppliesToSession(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	id := openWithSuggestion(t, app)

	_, err := app.AcceptSuggestion(suggest.Position{Line: 0, Column: 10})
	require.NoError(t, err)

	sessions := app.ListSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "const x = 42", sessions[0].Live)
	assert.True(t, sessions[0].Dirty)

	res, err := app.SaveFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "saved", res.Status)
	content, err := app.ReadRuntimeFile("src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "const x = 42", content)
}

func TestApp_StructuralOpsMoveSuggestionEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("delete active file", func(t *testing.T) {
		app := newTestApp(t)
		openWithSuggestion(t, app)
		require.NoError(t, app.DeleteFile(ctx, "src/index.ts"))
		assert.Nil(t, app.GetSuggestionState().Slot)
		assert.Empty(t, app.ListSessions())
	})

	t.Run("rename active file", func(t *testing.T) {
		app := newTestApp(t)
		openWithSuggestion(t, app)
		_, err := app.RenameFile(ctx, "src/index.ts", "main", "tsx")
		require.NoError(t, err)
		assert.Nil(t, app.GetSuggestionState().Slot)
		active, ok := app.workspace.Sessions().Active()
		require.True(t, ok)
		assert.Equal(t, "src/main.tsx", active.ID)
	})

	t.Run("rename parent folder keeps the document", func(t *testing.T) {
		app := newTestApp(t)
		openWithSuggestion(t, app)
		_, err := app.RenameFolder(ctx, "src", "app")
		require.NoError(t, err)
		assert.NotNil(t, app.GetSuggestionState().Slot)
	})

	t.Run("add file switches document", func(t *testing.T) {
		app := newTestApp(t)
		openWithSuggestion(t, app)
		_, err := app.AddFile(ctx, "src", "util", "ts", "")
		require.NoError(t, err)
		assert.Nil(t, app.GetSuggestionState().Slot)
	})
}

func TestApp_WorkspaceCatalog(t *testing.T) {
	app := newTestAppWith(t, func(cfg *config.Config) {})
	ctx := context.Background()

	all, err := app.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "default", all[0].ID)

	ws, err := app.CreateWorkspace(ctx, "demo", "react")
	require.NoError(t, err)
	assert.Equal(t, "REACT", ws.Template)

	data, err := app.backend.Load(ctx, ws.ID)
	require.NoError(t, err)
	root, err := tree.Unmarshal(data)
	require.NoError(t, err)
	_, err = tree.LookupFile(root, tree.ParsePath("package.json"))
	assert.NoError(t, err)

	all, err = app.ListWorkspaces()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, app.DeleteWorkspace("default"), errOpenWorkspace)
	require.NoError(t, app.DeleteWorkspace(ws.ID))
	all, err = app.ListWorkspaces()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = app.CreateWorkspace(ctx, "  ", "react")
	assert.Error(t, err)
}

func TestApp_SuggestionToggleIsRemembered(t *testing.T) {
	app := newTestAppWith(t, func(cfg *config.Config) {})

	_, ok := app.storedSuggestionsEnabled()
	assert.False(t, ok)

	app.SetSuggestionsEnabled(false)
	on, ok := app.storedSuggestionsEnabled()
	require.True(t, ok)
	assert.False(t, on)

	assert.True(t, app.ToggleSuggestions())
	on, _ = app.storedSuggestionsEnabled()
	assert.True(t, on)

	memory := newTestApp(t)
	_, err := memory.ListWorkspaces()
	assert.ErrorIs(t, err, errNoCatalog)
}
