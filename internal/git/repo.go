package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrFileNotFound is returned when a file is absent from the requested commit
var ErrFileNotFound = errors.New("file not found in repository")

// Repo represents a Git repository used as an append-only document history
type Repo struct {
	path string
	repo *git.Repository
	mu   sync.Mutex
}

// FileStatus represents the status of a single file
type FileStatus struct {
	Path   string
	Status string // "modified", "added", "deleted", "untracked", etc.
}

// RepoStatus represents the current status of the repository
type RepoStatus struct {
	Modified  []FileStatus
	Staged    []FileStatus
	Untracked []FileStatus
	IsClean   bool
}

// Commit summarizes one commit touching a file
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Open opens a git repository at the given path
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	return &Repo{
		path: path,
		repo: repo,
	}, nil
}

// OpenOrInit opens the repository at path, initializing a new one if none exists
func OpenOrInit(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create repository dir: %w", err)
		}
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	return &Repo{
		path: path,
		repo: repo,
	}, nil
}

// Path returns the worktree root
func (r *Repo) Path() string {
	return r.path
}

// Status returns the current status of the repository
func (r *Repo) Status() (*RepoStatus, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	repoStatus := &RepoStatus{
		Modified:  make([]FileStatus, 0),
		Staged:    make([]FileStatus, 0),
		Untracked: make([]FileStatus, 0),
		IsClean:   status.IsClean(),
	}

	for path, fileStatus := range status {
		fs := FileStatus{Path: path}

		// Check staging area status
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			fs.Status = mapStatusCode(fileStatus.Staging)
			repoStatus.Staged = append(repoStatus.Staged, fs)
		}

		// Check worktree status
		if fileStatus.Worktree == git.Untracked {
			fs.Status = "untracked"
			repoStatus.Untracked = append(repoStatus.Untracked, fs)
		} else if fileStatus.Worktree != git.Unmodified {
			fs.Status = mapStatusCode(fileStatus.Worktree)
			repoStatus.Modified = append(repoStatus.Modified, fs)
		}
	}

	return repoStatus, nil
}

// mapStatusCode converts go-git status codes to human-readable strings
func mapStatusCode(code git.StatusCode) string {
	switch code {
	case git.Unmodified:
		return "unmodified"
	case git.Untracked:
		return "untracked"
	case git.Modified:
		return "modified"
	case git.Added:
		return "added"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	case git.Copied:
		return "copied"
	case git.UpdatedButUnmerged:
		return "updated-but-unmerged"
	default:
		return "unknown"
	}
}

// CommitFile writes data to name inside the worktree and commits it. If the
// content is unchanged no commit is created and the empty hash is returned.
func (r *Repo) CommitFile(name string, data []byte, message, author, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := filepath.Join(r.path, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(name); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	if st, ok := status[name]; !ok || st.Staging == git.Unmodified {
		return "", nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: email, When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

// ReadFile returns the content of name at the given revision. An empty
// revision means HEAD.
func (r *Repo) ReadFile(name, revision string) ([]byte, error) {
	var hash plumbing.Hash
	if revision == "" {
		ref, err := r.repo.Head()
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, ErrFileNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		hash = ref.Hash()
	} else {
		hash = plumbing.NewHash(revision)
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	file, err := commit.File(name)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(contents), nil
}

// Log lists commits touching name, newest first. A limit of zero or less
// returns all of them.
func (r *Repo) Log(name string, limit int) ([]Commit, error) {
	if _, err := r.repo.Head(); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}

	iter, err := r.repo.Log(&git.LogOptions{FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	for {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}
