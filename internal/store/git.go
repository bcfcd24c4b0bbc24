package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codepad/internal/git"
)

// Git commits every snapshot as an indented JSON file into a local
// repository, so the workspace history can be browsed with ordinary git
// tooling. Documents are stored uncompressed.
type Git struct {
	repo *git.Repo
}

// OpenGit opens or initializes the history repository at dir.
func OpenGit(dir string) (*Git, error) {
	if dir == "" {
		return nil, errors.New("git store: directory is required")
	}
	repo, err := git.OpenOrInit(dir)
	if err != nil {
		return nil, err
	}
	return &Git{repo: repo}, nil
}

func fileFor(workspaceID string) string {
	return workspaceID + ".json"
}

func (g *Git) Load(ctx context.Context, workspaceID string) ([]byte, error) {
	return g.LoadRevision(ctx, workspaceID, "")
}

func (g *Git) Save(ctx context.Context, workspaceID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("git store: snapshot is not JSON: %w", err)
	}
	pretty.WriteByte('\n')

	msg := fmt.Sprintf("Save %s (%s)", workspaceID, Hash(data)[:12])
	_, err := g.repo.CommitFile(fileFor(workspaceID), pretty.Bytes(), msg, "codepad", "codepad@localhost")
	return err
}

func (g *Git) History(ctx context.Context, workspaceID string, limit int) ([]Revision, error) {
	commits, err := g.repo.Log(fileFor(workspaceID), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Revision, 0, len(commits))
	for _, c := range commits {
		out = append(out, Revision{ID: c.Hash, CreatedAt: c.When})
	}
	return out, nil
}

// LoadRevision reads the snapshot at a commit hash; the empty revision is
// HEAD. The indentation added on save is removed again.
func (g *Git) LoadRevision(ctx context.Context, workspaceID, revision string) ([]byte, error) {
	data, err := g.repo.ReadFile(fileFor(workspaceID), revision)
	if errors.Is(err, git.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return compact.Bytes(), nil
}

func (g *Git) Close() error { return nil }
