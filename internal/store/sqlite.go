package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"codepad/internal/database"
	"codepad/internal/logging"
)

// SQLite stores compressed snapshots as numbered revisions in the local
// database, keeping at most Retention revisions per workspace.
type SQLite struct {
	db        *database.Database
	codec     *Codec
	retention int
	ownsDB    bool
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string, codec *Codec, retention int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	s := NewSQLite(db, codec, retention)
	s.ownsDB = true
	return s, nil
}

// NewSQLite wraps an already open database.
func NewSQLite(db *database.Database, codec *Codec, retention int) *SQLite {
	return &SQLite{db: db, codec: codec, retention: retention}
}

func (s *SQLite) Load(ctx context.Context, workspaceID string) ([]byte, error) {
	snap, err := s.db.LatestSnapshot(ctx, workspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.codec.verify(snap.Data, snap.Hash)
}

// Save appends a revision unless the newest one already holds identical
// content.
func (s *SQLite) Save(ctx context.Context, workspaceID string, data []byte) error {
	hash := Hash(data)

	latest, err := s.db.ListSnapshots(ctx, workspaceID, 1)
	if err != nil {
		return err
	}
	if len(latest) == 1 && latest[0].Hash == hash {
		return nil
	}

	rev, err := s.db.InsertSnapshot(ctx, &database.Snapshot{
		WorkspaceID: workspaceID,
		Hash:        hash,
		Size:        len(data),
		Data:        s.codec.Compress(data),
	})
	if err != nil {
		return err
	}

	if s.retention > 0 {
		pruned, err := s.db.PruneSnapshots(ctx, workspaceID, s.retention)
		if err != nil {
			logging.L().Warn("snapshot prune failed", zap.String("workspace", workspaceID), zap.Error(err))
		} else if pruned > 0 {
			logging.L().Debug("snapshots pruned",
				zap.String("workspace", workspaceID),
				zap.Int64("revision", rev),
				zap.Int64("pruned", pruned))
		}
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, workspaceID string, limit int) ([]Revision, error) {
	snaps, err := s.db.ListSnapshots(ctx, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Revision, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, Revision{
			ID:        strconv.FormatInt(snap.Revision, 10),
			Hash:      snap.Hash,
			Size:      snap.Size,
			CreatedAt: snap.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLite) LoadRevision(ctx context.Context, workspaceID, revision string) ([]byte, error) {
	n, err := strconv.ParseInt(revision, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	snap, err := s.db.GetSnapshot(ctx, workspaceID, n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.codec.verify(snap.Data, snap.Hash)
}

// DB exposes the underlying database for workspace metadata and settings.
func (s *SQLite) DB() *database.Database {
	return s.db
}

func (s *SQLite) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
