// Package store persists workspace tree snapshots. Every backend stores the
// serialized tree document for a workspace id and returns the newest one.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means the workspace has never been persisted.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt means a stored snapshot failed its integrity check.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Backend is a snapshot store.
type Backend interface {
	Load(ctx context.Context, workspaceID string) ([]byte, error)
	Save(ctx context.Context, workspaceID string, data []byte) error
	Close() error
}

// Historian is implemented by backends that keep older revisions.
type Historian interface {
	History(ctx context.Context, workspaceID string, limit int) ([]Revision, error)
	LoadRevision(ctx context.Context, workspaceID, revision string) ([]byte, error)
}

// Revision describes one stored snapshot.
type Revision struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Config selects and configures a backend.
type Config struct {
	Backend          string   `yaml:"backend"` // "sqlite", "s3", "git", "memory"
	SQLitePath       string   `yaml:"sqlite_path"`
	Retention        int      `yaml:"retention"`
	GitDir           string   `yaml:"git_dir"`
	CompressionLevel int      `yaml:"compression_level"`
	S3               S3Config `yaml:"s3"`
}

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "sqlite":
		codec, err := NewCodec(cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(cfg.SQLitePath, codec, cfg.Retention)
	case "s3":
		codec, err := NewCodec(cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return NewS3(ctx, cfg.S3, codec)
	case "git":
		return OpenGit(cfg.GitDir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
