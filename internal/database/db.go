// internal/database/db.go
package database

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Database wraps the SQLite database connection
type Database struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	d := &Database{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// init creates the database schema
func (d *Database) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		template TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		workspace_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, revision)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(workspace_id, hash);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveSetting saves or updates a setting
func (d *Database) SaveSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`, key, value, time.Now())
	return err
}

// GetSetting retrieves a setting by key
func (d *Database) GetSetting(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	return value, err
}

// SaveWorkspace saves or updates workspace metadata
func (d *Database) SaveWorkspace(ws *Workspace) error {
	now := time.Now()
	ws.UpdatedAt = now
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO workspaces (id, name, template, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.Template, ws.CreatedAt, ws.UpdatedAt)
	return err
}

// GetWorkspace retrieves workspace metadata by ID
func (d *Database) GetWorkspace(id string) (*Workspace, error) {
	ws := &Workspace{}
	var template sql.NullString
	err := d.db.QueryRow(`
		SELECT id, name, template, created_at, updated_at
		FROM workspaces WHERE id = ?`, id).
		Scan(&ws.ID, &ws.Name, &template, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ws.Template = template.String
	return ws, nil
}

// ListWorkspaces retrieves all workspaces, most recently updated first
func (d *Database) ListWorkspaces() ([]*Workspace, error) {
	rows, err := d.db.Query(`
		SELECT id, name, template, created_at, updated_at
		FROM workspaces ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Workspace
	for rows.Next() {
		ws := &Workspace{}
		var template sql.NullString
		if err := rows.Scan(&ws.ID, &ws.Name, &template, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		ws.Template = template.String
		out = append(out, ws)
	}
	return out, rows.Err()
}

// InsertSnapshot stores a new revision and returns its number. Revisions
// start at 1 and increase by one per workspace.
func (d *Database) InsertSnapshot(ctx context.Context, snap *Snapshot) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(revision), 0) + 1 FROM snapshots WHERE workspace_id = ?",
		snap.WorkspaceID).Scan(&rev)
	if err != nil {
		return 0, err
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (workspace_id, revision, hash, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.WorkspaceID, rev, snap.Hash, snap.Size, snap.Data, snap.CreatedAt.UnixNano())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	snap.Revision = rev
	return rev, nil
}

// LatestSnapshot returns the newest revision of a workspace, or
// sql.ErrNoRows if it has none.
func (d *Database) LatestSnapshot(ctx context.Context, workspaceID string) (*Snapshot, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT workspace_id, revision, hash, size, data, created_at
		FROM snapshots WHERE workspace_id = ?
		ORDER BY revision DESC LIMIT 1`, workspaceID)
	return scanSnapshot(row)
}

// GetSnapshot returns one specific revision.
func (d *Database) GetSnapshot(ctx context.Context, workspaceID string, revision int64) (*Snapshot, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT workspace_id, revision, hash, size, data, created_at
		FROM snapshots WHERE workspace_id = ? AND revision = ?`, workspaceID, revision)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	snap := &Snapshot{}
	var createdAt int64
	if err := row.Scan(&snap.WorkspaceID, &snap.Revision, &snap.Hash, &snap.Size, &snap.Data, &createdAt); err != nil {
		return nil, err
	}
	snap.CreatedAt = time.Unix(0, createdAt)
	return snap, nil
}

// ListSnapshots returns revision metadata, newest first, without data.
// A limit of zero or less returns everything.
func (d *Database) ListSnapshots(ctx context.Context, workspaceID string, limit int) ([]*Snapshot, error) {
	query := `
		SELECT workspace_id, revision, hash, size, created_at
		FROM snapshots WHERE workspace_id = ?
		ORDER BY revision DESC`
	args := []interface{}{workspaceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		var createdAt int64
		if err := rows.Scan(&snap.WorkspaceID, &snap.Revision, &snap.Hash, &snap.Size, &createdAt); err != nil {
			return nil, err
		}
		snap.CreatedAt = time.Unix(0, createdAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes all but the newest keep revisions.
func (d *Database) PruneSnapshots(ctx context.Context, workspaceID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE workspace_id = ? AND revision <= (
			SELECT COALESCE(MAX(revision), 0) - ? FROM snapshots WHERE workspace_id = ?
		)`, workspaceID, keep, workspaceID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteWorkspace removes a workspace and all of its snapshots
func (d *Database) DeleteWorkspace(id string) error {
	if _, err := d.db.Exec("DELETE FROM snapshots WHERE workspace_id = ?", id); err != nil {
		return err
	}
	_, err := d.db.Exec("DELETE FROM workspaces WHERE id = ?", id)
	return err
}
