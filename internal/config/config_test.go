// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_LoadDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codepad")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.SQLitePath != filepath.Join(dir, "workspaces.db") {
		t.Errorf("Unexpected sqlite path %s", cfg.Store.SQLitePath)
	}
	if cfg.Suggest.Debounce != 300*time.Millisecond {
		t.Errorf("Expected 300ms debounce, got %s", cfg.Suggest.Debounce)
	}

	// Verify directories exist
	for _, d := range []string{cfg.CodepadDir, cfg.LogDir, cfg.RuntimeDir} {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			t.Errorf("%s should be created", d)
		}
	}
}

func TestConfig_LoadFile(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  addr: ":9000"
workspace:
  id: demo
  key_scheme: name
store:
  backend: memory
suggest:
  debounce: 150ms
  tolerance: 3
templates:
  REACT: /opt/templates/react
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Expected :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Workspace.ID != "demo" || cfg.Workspace.KeyScheme != "name" {
		t.Errorf("Unexpected workspace config %+v", cfg.Workspace)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.Suggest.Debounce != 150*time.Millisecond || cfg.Suggest.Tolerance != 3 {
		t.Errorf("Unexpected suggest config %+v", cfg.Suggest)
	}
	// unset fields keep their defaults
	if cfg.Suggest.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout, got %s", cfg.Suggest.Timeout)
	}
	if got := cfg.TemplateDirs()["REACT"]; got != "/opt/templates/react" {
		t.Errorf("Expected absolute template dir, got %s", got)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CODEPAD_STORE_BACKEND", "git")
	t.Setenv("CODEPAD_SUGGEST_ENABLED", "false")
	t.Setenv("CODEPAD_SUGGEST_DEBOUNCE", "1s")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Store.Backend != "git" {
		t.Errorf("Expected git backend, got %s", cfg.Store.Backend)
	}
	if cfg.Suggest.Enabled {
		t.Error("Suggestions should be disabled")
	}
	if cfg.Suggest.Debounce != time.Second {
		t.Errorf("Expected 1s debounce, got %s", cfg.Suggest.Debounce)
	}

	t.Setenv("CODEPAD_SUGGEST_ENABLED", "maybe")
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Error("Expected error for invalid boolean")
	}
}

func TestConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("workspace:\n  key_scheme: inode\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(dir); err == nil {
		t.Error("Expected error for unknown key scheme")
	}
}

func TestConfig_TemplateDirs(t *testing.T) {
	cfg := Default("/home/user/.codepad")

	path := cfg.TemplateDirs()["NEXTJS"]
	expected := "/home/user/.codepad/templates/nextjs"

	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workspace.Template = "VUE"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	again, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if again.Workspace.Template != "VUE" {
		t.Errorf("Expected VUE, got %s", again.Workspace.Template)
	}
}
