// internal/session/store.go
package session

import (
	"errors"
	"sync"
	"time"

	"codepad/internal/tree"
)

var ErrNoSession = errors.New("no such session")

// KeyScheme decides how a session id is derived from a file.
type KeyScheme int

const (
	// KeyByPath keys sessions by the file's full resolved path.
	KeyByPath KeyScheme = iota
	// KeyByName keys sessions by "name.ext" alone. Two files with the same
	// name in different folders share one session under this scheme.
	KeyByName
)

// Session is one open, possibly modified, in-editor copy of a file.
type Session struct {
	ID        string    `json:"id"`
	Path      tree.Path `json:"path"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Live      string    `json:"content"`
	Original  string    `json:"original_content"`
	Dirty     bool      `json:"has_unsaved_changes"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Store is the open-file working set. Exactly one session is active
// whenever any are open.
type Store struct {
	mu       sync.RWMutex
	scheme   KeyScheme
	sessions map[string]*Session
	order    []string
	activeID string
}

// NewStore creates an empty store.
func NewStore(scheme KeyScheme) *Store {
	return &Store{
		scheme:   scheme,
		sessions: make(map[string]*Session),
	}
}

// Scheme returns the key scheme in use.
func (s *Store) Scheme() KeyScheme {
	return s.scheme
}

// KeyFor derives the session id for a file at path.
func (s *Store) KeyFor(path tree.Path) string {
	if s.scheme == KeyByName {
		return path.Base()
	}
	return path.String()
}

// Open activates the session for the file at path, creating a clean one if
// none exists. It returns a copy of the session.
func (s *Store) Open(path tree.Path, file *tree.File) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.KeyFor(path)
	if existing, ok := s.sessions[id]; ok {
		s.activeID = id
		return *existing
	}

	sess := &Session{
		ID:        id,
		Path:      append(tree.Path(nil), path...),
		Name:      file.Name,
		Extension: file.Extension,
		Live:      file.Content,
		Original:  file.Content,
		OpenedAt:  time.Now(),
	}
	s.sessions[id] = sess
	s.order = append(s.order, id)
	s.activeID = id
	return *sess
}

// Edit replaces the live content and recomputes the dirty flag.
func (s *Store) Edit(id, content string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	sess.Live = content
	sess.Dirty = sess.Live != sess.Original
	return *sess, nil
}

// Commit records persisted as the last durable content. Edits made after
// persisted was captured keep the session dirty.
func (s *Store) Commit(id, persisted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNoSession
	}
	sess.Original = persisted
	sess.Dirty = sess.Live != sess.Original
	return nil
}

// Close drops a session without saving. If it was active, the most
// recently opened remaining session becomes active.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNoSession
	}
	s.removeLocked(id)
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.sessions, id)
	s.order = removeID(s.order, id)
	if s.activeID == id {
		s.activeID = ""
		if n := len(s.order); n > 0 {
			s.activeID = s.order[n-1]
		}
	}
}

// CloseAll drops every session. Nothing is saved.
func (s *Store) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*Session)
	s.order = nil
	s.activeID = ""
}

// CloseUnder force-closes every session whose file is prefix or lies
// beneath it, returning the closed ids.
func (s *Store) CloseUnder(prefix tree.Path) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed []string
	for _, id := range append([]string(nil), s.order...) {
		if s.sessions[id].Path.HasPrefix(prefix) {
			s.removeLocked(id)
			closed = append(closed, id)
		}
	}
	return closed
}

// Rebind re-keys sessions after a rename of the node at oldPath. Sessions
// at or beneath oldPath move to the corresponding location under newPath.
//
// Under KeyByName the new id may already belong to a session of another
// file. The renamed session takes the id and the other one is closed
// without saving; its id is returned in displaced.
func (s *Store) Rebind(oldPath, newPath tree.Path) (moved map[string]string, displaced []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved = make(map[string]string)
	for _, id := range append([]string(nil), s.order...) {
		sess, ok := s.sessions[id]
		if !ok || !sess.Path.HasPrefix(oldPath) {
			continue
		}
		sess.Path = sess.Path.Rebase(oldPath, newPath)
		if len(sess.Path) == len(newPath) {
			sess.Name, sess.Extension = tree.SplitFileName(newPath.Base())
		}
		newID := s.KeyFor(sess.Path)
		if newID == id {
			continue
		}
		if _, taken := s.sessions[newID]; taken {
			if s.activeID == newID {
				s.activeID = id
			}
			delete(s.sessions, newID)
			s.order = removeID(s.order, newID)
			displaced = append(displaced, newID)
		}
		delete(s.sessions, id)
		sess.ID = newID
		s.sessions[newID] = sess
		for i, oid := range s.order {
			if oid == id {
				s.order[i] = newID
			}
		}
		if s.activeID == id {
			s.activeID = newID
		}
		moved[id] = newID
	}
	return moved, displaced
}

func removeID(order []string, id string) []string {
	for i, oid := range order {
		if oid == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// Activate binds the visible editor to id.
func (s *Store) Activate(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	s.activeID = id
	return *sess, nil
}

// Active returns the active session, if any.
func (s *Store) Active() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[s.activeID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// EditorContent is what the visible editor shows: the active session's
// live content, never its last-saved content.
func (s *Store) EditorContent() string {
	sess, ok := s.Active()
	if !ok {
		return ""
	}
	return sess.Live
}

// Get returns a copy of one session.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// List returns copies of all sessions in the order they were opened.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.sessions[id])
	}
	return out
}

// Dirty returns the sessions with unsaved changes.
func (s *Store) Dirty() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, id := range s.order {
		if sess := s.sessions[id]; sess.Dirty {
			out = append(out, *sess)
		}
	}
	return out
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
