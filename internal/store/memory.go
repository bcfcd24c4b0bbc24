package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory keeps every snapshot in process. Used for development and tests.
type Memory struct {
	mu   sync.RWMutex
	revs map[string][]memoryRev
}

type memoryRev struct {
	data []byte
	at   time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{revs: make(map[string][]memoryRev)}
}

func (m *Memory) Load(ctx context.Context, workspaceID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	revs := m.revs[workspaceID]
	if len(revs) == 0 {
		return nil, ErrNotFound
	}
	return append([]byte(nil), revs[len(revs)-1].data...), nil
}

func (m *Memory) Save(ctx context.Context, workspaceID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.revs[workspaceID] = append(m.revs[workspaceID], memoryRev{
		data: append([]byte(nil), data...),
		at:   time.Now(),
	})
	return nil
}

// History lists revisions newest first. Revision ids are 1-based indexes.
func (m *Memory) History(ctx context.Context, workspaceID string, limit int) ([]Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	revs := m.revs[workspaceID]
	var out []Revision
	for i := len(revs) - 1; i >= 0; i-- {
		out = append(out, Revision{
			ID:        strconv.Itoa(i + 1),
			Hash:      Hash(revs[i].data),
			Size:      len(revs[i].data),
			CreatedAt: revs[i].at,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) LoadRevision(ctx context.Context, workspaceID, revision string) ([]byte, error) {
	n, err := strconv.Atoi(revision)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	revs := m.revs[workspaceID]
	if n < 1 || n > len(revs) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), revs[n-1].data...), nil
}

// Revisions returns how many snapshots have been saved for a workspace.
func (m *Memory) Revisions(workspaceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revs[workspaceID])
}

func (m *Memory) Close() error { return nil }
