// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"codepad/internal/completion"
	"codepad/internal/store"
)

// FileName is the config file looked up inside the codepad directory.
const FileName = "config.yaml"

// Config holds all application configuration
type Config struct {
	HomeDir      string `yaml:"-"`
	CodepadDir   string `yaml:"-"`
	LogDir       string `yaml:"-"`
	RuntimeDir   string `yaml:"runtime_dir"`
	TemplatesDir string `yaml:"templates_dir"`

	Server     ServerConfig      `yaml:"server"`
	Workspace  WorkspaceConfig   `yaml:"workspace"`
	Store      store.Config      `yaml:"store"`
	Completion completion.Config `yaml:"completion"`
	Suggest    SuggestConfig     `yaml:"suggest"`
	Logging    LoggingConfig     `yaml:"logging"`

	// Templates maps a template name such as "REACT" to its directory.
	// Relative directories are resolved against TemplatesDir.
	Templates map[string]string `yaml:"templates"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
	// AuthKey, when set, is required in the X-Auth-Key header of websocket
	// clients.
	AuthKey string `yaml:"auth_key"`
}

type WorkspaceConfig struct {
	ID              string        `yaml:"id"`
	Template        string        `yaml:"template"`
	KeyScheme       string        `yaml:"key_scheme"` // "path" or "name"
	SaveConcurrency int           `yaml:"save_concurrency"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	RuntimeTimeout  time.Duration `yaml:"runtime_timeout"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
}

type SuggestConfig struct {
	Enabled bool `yaml:"enabled"`
	// ServiceURL is the suggestion endpoint. Empty means the in-process
	// handler served by "codepad serve".
	ServiceURL  string        `yaml:"service_url"`
	Debounce    time.Duration `yaml:"debounce"`
	Timeout     time.Duration `yaml:"timeout"`
	Tolerance   int           `yaml:"tolerance"`
	ColumnDelta int           `yaml:"column_delta"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file exists, rooted at
// codepadDir.
func Default(codepadDir string) *Config {
	return &Config{
		CodepadDir:   codepadDir,
		LogDir:       filepath.Join(codepadDir, "logs"),
		RuntimeDir:   filepath.Join(codepadDir, "runtime"),
		TemplatesDir: filepath.Join(codepadDir, "templates"),
		Server: ServerConfig{
			Addr:        "127.0.0.1:3777",
			MetricsPath: "/metrics",
		},
		Workspace: WorkspaceConfig{
			ID:              "default",
			KeyScheme:       "path",
			SaveConcurrency: 4,
			StoreTimeout:    10 * time.Second,
			RuntimeTimeout:  5 * time.Second,
			WatchDebounce:   200 * time.Millisecond,
		},
		Store: store.Config{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(codepadDir, "workspaces.db"),
			GitDir:     filepath.Join(codepadDir, "history"),
			Retention:  50,
		},
		Completion: completion.Config{
			Provider: "ollama",
			Timeout:  2 * time.Minute,
		},
		Suggest: SuggestConfig{
			Enabled:     true,
			Debounce:    300 * time.Millisecond,
			Timeout:     10 * time.Second,
			Tolerance:   2,
			ColumnDelta: 2,
			CacheSize:   256,
			CacheTTL:    5 * time.Minute,
			RatePerSec:  2,
			Burst:       4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Templates: map[string]string{
			"REACT":   "react",
			"NEXTJS":  "nextjs",
			"EXPRESS": "express",
			"VUE":     "vue",
			"ANGULAR": "angular",
		},
	}
}

// Load reads ~/.codepad/config.yaml (or $CODEPAD_HOME/config.yaml), applies
// environment overrides and creates the directories it names.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := os.Getenv("CODEPAD_HOME")
	if dir == "" {
		dir = filepath.Join(home, ".codepad")
	}
	cfg, err := LoadFrom(dir)
	if err != nil {
		return nil, err
	}
	cfg.HomeDir = home
	return cfg, nil
}

// LoadFrom loads the configuration rooted at codepadDir.
func LoadFrom(codepadDir string) (*Config, error) {
	cfg := Default(codepadDir)

	data, err := os.ReadFile(filepath.Join(codepadDir, FileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure directories exist
	for _, dir := range []string{cfg.CodepadDir, cfg.LogDir, cfg.RuntimeDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"CODEPAD_LOG_LEVEL":           &c.Logging.Level,
		"CODEPAD_LOG_FORMAT":          &c.Logging.Format,
		"CODEPAD_SERVER_ADDR":         &c.Server.Addr,
		"CODEPAD_AUTH_KEY":            &c.Server.AuthKey,
		"CODEPAD_RUNTIME_DIR":         &c.RuntimeDir,
		"CODEPAD_TEMPLATES_DIR":       &c.TemplatesDir,
		"CODEPAD_WORKSPACE":           &c.Workspace.ID,
		"CODEPAD_TEMPLATE":            &c.Workspace.Template,
		"CODEPAD_STORE_BACKEND":       &c.Store.Backend,
		"CODEPAD_SQLITE_PATH":         &c.Store.SQLitePath,
		"CODEPAD_S3_BUCKET":           &c.Store.S3.Bucket,
		"CODEPAD_S3_ENDPOINT":         &c.Store.S3.Endpoint,
		"CODEPAD_COMPLETION_PROVIDER": &c.Completion.Provider,
		"CODEPAD_COMPLETION_URL":      &c.Completion.BaseURL,
		"CODEPAD_COMPLETION_MODEL":    &c.Completion.Model,
		"CODEPAD_OPENAI_API_KEY":      &c.Completion.APIKey,
		"CODEPAD_SUGGEST_URL":         &c.Suggest.ServiceURL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("CODEPAD_SUGGEST_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CODEPAD_SUGGEST_ENABLED: %w", err)
		}
		c.Suggest.Enabled = b
	}
	if v, ok := os.LookupEnv("CODEPAD_SUGGEST_DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CODEPAD_SUGGEST_DEBOUNCE: %w", err)
		}
		c.Suggest.Debounce = d
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Workspace.KeyScheme {
	case "", "path", "name":
	default:
		return fmt.Errorf("workspace.key_scheme must be \"path\" or \"name\", got %q", c.Workspace.KeyScheme)
	}
	if c.Workspace.ID == "" {
		return errors.New("workspace.id must not be empty")
	}
	if c.Suggest.Tolerance < 0 || c.Suggest.ColumnDelta < 0 {
		return errors.New("suggest.tolerance and suggest.column_delta must not be negative")
	}
	return nil
}

// TemplateDirs resolves the template table to absolute directories.
func (c *Config) TemplateDirs() map[string]string {
	out := make(map[string]string, len(c.Templates))
	for name, dir := range c.Templates {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.TemplatesDir, dir)
		}
		out[name] = dir
	}
	return out
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.CodepadDir, FileName), data, 0600)
}
