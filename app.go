// app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"codepad/internal/completion"
	"codepad/internal/config"
	"codepad/internal/database"
	"codepad/internal/eventhub"
	"codepad/internal/runtimefs"
	"codepad/internal/session"
	"codepad/internal/store"
	"codepad/internal/suggest"
	"codepad/internal/template"
	"codepad/internal/watcher"
	"codepad/internal/workspace"
)

// App struct contains the core application state and managers
type App struct {
	ctx    context.Context
	mu     sync.RWMutex
	config *config.Config
	log    *zap.Logger

	// Core managers
	backend        store.Backend
	workspace      *workspace.Coordinator
	sandbox        *runtimefs.Sandbox
	runtimeWatcher *watcher.Watcher
	templates      *template.Registry
	generator      completion.Generator
	engine         *suggest.Engine
	eventHub       *eventhub.EventHub
}

// NewApp creates a new App for cfg.
func NewApp(cfg *config.Config, log *zap.Logger) *App {
	return &App{config: cfg, log: log}
}

// startup opens the store, loads the configured workspace and starts the
// suggestion engine and the runtime watcher.
func (a *App) startup(ctx context.Context) error {
	a.ctx = ctx
	cfg := a.config

	// Initialize EventHub (before managers that need it)
	a.eventHub = eventhub.New(ctx)

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.backend = backend

	a.templates = template.NewRegistry(cfg.TemplateDirs())

	a.sandbox, err = runtimefs.New(filepath.Join(cfg.RuntimeDir, cfg.Workspace.ID))
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}

	scheme := session.KeyByPath
	if cfg.Workspace.KeyScheme == "name" {
		scheme = session.KeyByName
	}
	a.workspace, err = workspace.New(workspace.Options{
		WorkspaceID:     cfg.Workspace.ID,
		Template:        cfg.Workspace.Template,
		Store:           backend,
		Runtime:         a.sandbox,
		Scaffolder:      a.templates,
		Notifier:        a.eventHub,
		Logger:          a.log.Named("workspace"),
		KeyScheme:       scheme,
		StoreTimeout:    cfg.Workspace.StoreTimeout,
		RuntimeTimeout:  cfg.Workspace.RuntimeTimeout,
		SaveConcurrency: cfg.Workspace.SaveConcurrency,
	})
	if err != nil {
		return err
	}
	if err := a.workspace.Load(ctx); err != nil {
		return err
	}
	a.recordWorkspace()

	requester, err := a.requester()
	if err != nil {
		return err
	}
	var limiter *rate.Limiter
	if cfg.Suggest.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Suggest.RatePerSec), max(1, cfg.Suggest.Burst))
	}
	a.engine = suggest.NewEngine(suggest.Options{
		Requester: requester,
		Policy: suggest.TriggerPolicy{
			Tolerance:   cfg.Suggest.Tolerance,
			ColumnDelta: cfg.Suggest.ColumnDelta,
			Chars:       suggest.DefaultTriggerChars,
		},
		Debounce: cfg.Suggest.Debounce,
		Timeout:  cfg.Suggest.Timeout,
		Cache:    suggest.NewCache(cfg.Suggest.CacheSize, cfg.Suggest.CacheTTL),
		Limiter:  limiter,
		Logger:   a.log.Named("suggest"),
		OnChange: func(s suggest.State) { a.eventHub.SuggestionChanged(s) },
	})
	enabled := cfg.Suggest.Enabled
	if on, ok := a.storedSuggestionsEnabled(); ok {
		enabled = on
	}
	a.engine.SetEnabled(enabled)

	a.runtimeWatcher, err = a.sandbox.Watch(cfg.Workspace.WatchDebounce, func(e watcher.Event) {
		a.eventHub.RuntimeChanged(e.Path, string(e.Type))
	})
	if err != nil {
		a.log.Warn("runtime watcher unavailable", zap.Error(err))
	}

	a.log.Info("codepad started",
		zap.String("workspace", cfg.Workspace.ID),
		zap.String("store", cfg.Store.Backend),
		zap.String("runtime", a.sandbox.Root()))
	return nil
}

// requester picks the suggestion transport: a remote service when one is
// configured, otherwise the local generator.
func (a *App) requester() (suggest.Requester, error) {
	if url := a.config.Suggest.ServiceURL; url != "" {
		return completion.NewClient(url, nil), nil
	}
	gen, err := a.loadGenerator()
	if err != nil {
		return nil, err
	}
	return completion.NewLocal(gen), nil
}

// loadGenerator returns the configured completion generator, creating it on
// first use.
func (a *App) loadGenerator() (completion.Generator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generator == nil {
		gen, err := completion.NewGenerator(a.config.Completion)
		if err != nil {
			return nil, err
		}
		a.generator = gen
	}
	return a.generator, nil
}

// recordWorkspace keeps the workspace listing current when the store is
// backed by the local database.
func (a *App) recordWorkspace() {
	db, err := catalog(a.backend)
	if err != nil {
		return
	}
	id := a.config.Workspace.ID
	ws, err := db.GetWorkspace(id)
	if err != nil {
		ws = &database.Workspace{ID: id, Name: id, Template: a.config.Workspace.Template}
	}
	if err := db.SaveWorkspace(ws); err != nil {
		a.log.Warn("record workspace failed", zap.Error(err))
	}
}

// shutdown flushes pending persistence and releases every resource.
func (a *App) shutdown(ctx context.Context) error {
	var errs []error

	if a.engine != nil {
		a.engine.Close()
	}
	if a.runtimeWatcher != nil {
		a.runtimeWatcher.Close()
	}
	if a.workspace != nil {
		a.workspace.Wait()
		if err := a.workspace.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		if n := len(a.workspace.Sessions().Dirty()); n > 0 {
			a.log.Warn("unsaved sessions discarded", zap.Int("count", n))
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.log.Info("codepad shutdown complete")
	return errors.Join(errs...)
}

// setEventHubBroadcaster attaches the websocket server to the event hub.
func (a *App) setEventHubBroadcaster(broadcaster eventhub.Broadcaster) {
	if a.eventHub != nil {
		a.eventHub.SetBroadcaster(broadcaster)
	}
}
