// Package workspace keeps the project tree, the open editor sessions, the
// runtime filesystem and the persisted snapshot in agreement.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codepad/internal/logging"
	"codepad/internal/metrics"
	"codepad/internal/session"
	"codepad/internal/store"
	"codepad/internal/tree"
)

// Store persists whole-tree snapshots.
type Store interface {
	Load(ctx context.Context, workspaceID string) ([]byte, error)
	Save(ctx context.Context, workspaceID string, data []byte) error
}

// RuntimeFS is the sandboxed filesystem the running project executes from.
type RuntimeFS interface {
	Mount(ctx context.Context, files map[string]string) error
	WriteFile(ctx context.Context, path, content string) error
}

// RuntimeRemover is implemented by runtimes that can delete paths.
type RuntimeRemover interface {
	Remove(ctx context.Context, path string) error
}

// Scaffolder builds a starter tree for a workspace with no snapshot.
type Scaffolder interface {
	Scaffold(ctx context.Context, template string) (*tree.Folder, error)
}

// Notifier surfaces outcomes to the user.
type Notifier interface {
	FileSaved(path string)
	SaveSkipped(path string)
	SaveFailed(path string, err error)
	RuntimeWriteFailed(path string, err error)
	TreeChanged(op, path string)
	TreePersistFailed(err error)
	SessionsClosed(ids []string)
}

// Options configures a Coordinator. Store is required.
type Options struct {
	WorkspaceID string
	Template    string

	Store      Store
	Runtime    RuntimeFS
	Scaffolder Scaffolder
	Notifier   Notifier
	Logger     *zap.Logger

	KeyScheme       session.KeyScheme
	StoreTimeout    time.Duration
	RuntimeTimeout  time.Duration
	SaveConcurrency int
}

// SaveStatus is the outcome of a successful Save call.
type SaveStatus string

const (
	StatusSaved   SaveStatus = "saved"
	StatusSkipped SaveStatus = "skipped"
)

// SaveResult describes one save.
type SaveResult struct {
	ID     string     `json:"id"`
	Path   string     `json:"path"`
	Status SaveStatus `json:"status"`
	// RuntimeErr is set when the runtime mirror could not be updated. The
	// save itself still succeeded.
	RuntimeErr error `json:"-"`
}

// SaveAllResult aggregates a SaveAll pass.
type SaveAllResult struct {
	Saved   int              `json:"saved"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Errors  map[string]error `json:"-"`
}

// Coordinator owns the current tree root and the session store.
type Coordinator struct {
	id         string
	template   string
	store      Store
	runtime    RuntimeFS
	scaffolder Scaffolder
	notify     Notifier
	log        *zap.Logger

	storeTimeout   time.Duration
	runtimeTimeout time.Duration
	concurrency    int

	sessions *session.Store

	mu   sync.RWMutex // guards root, idx, gen
	root *tree.Folder
	idx  *tree.Index
	gen  uint64

	// commitMu serializes candidate computation, persistence and root swap.
	commitMu sync.Mutex

	persistMu  sync.Mutex
	writtenGen uint64
	failedGen  uint64

	wg sync.WaitGroup
}

// New creates a coordinator with an empty tree. Call Load to populate it.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("workspace: store is required")
	}
	if opts.WorkspaceID == "" {
		return nil, errors.New("workspace: workspace id is required")
	}
	c := &Coordinator{
		id:             opts.WorkspaceID,
		template:       opts.Template,
		store:          opts.Store,
		runtime:        opts.Runtime,
		scaffolder:     opts.Scaffolder,
		notify:         opts.Notifier,
		log:            opts.Logger,
		storeTimeout:   opts.StoreTimeout,
		runtimeTimeout: opts.RuntimeTimeout,
		concurrency:    opts.SaveConcurrency,
		sessions:       session.NewStore(opts.KeyScheme),
		root:           &tree.Folder{Name: tree.RootName},
	}
	if c.notify == nil {
		c.notify = nopNotifier{}
	}
	if c.log == nil {
		c.log = logging.Named("workspace")
	}
	if c.storeTimeout <= 0 {
		c.storeTimeout = 10 * time.Second
	}
	if c.runtimeTimeout <= 0 {
		c.runtimeTimeout = 5 * time.Second
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}
	return c, nil
}

// ID returns the workspace id.
func (c *Coordinator) ID() string {
	return c.id
}

// Sessions returns the session store.
func (c *Coordinator) Sessions() *session.Store {
	return c.sessions
}

// Tree returns the current root. The value is immutable.
func (c *Coordinator) Tree() *tree.Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

func (c *Coordinator) index() *tree.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.idx.Valid(c.root) {
		c.idx = tree.NewIndex(c.root)
	}
	return c.idx
}

// swap installs a new root and returns its generation. Callers hold commitMu.
func (c *Coordinator) swap(root *tree.Folder) uint64 {
	c.mu.Lock()
	c.root = root
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	metrics.SetTreeSize(tree.Count(root))
	return gen
}

func (c *Coordinator) current() (*tree.Folder, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root, c.gen
}

// Load reads the persisted snapshot, scaffolding a fresh tree from the
// configured template if there is none, and mounts it into the runtime.
// All open sessions are closed.
func (c *Coordinator) Load(ctx context.Context) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	data, err := c.store.Load(sctx, c.id)
	cancel()

	var root *tree.Folder
	persisted := true
	switch {
	case errors.Is(err, store.ErrNotFound):
		persisted = false
		root, err = c.scaffold(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return &PersistenceError{WorkspaceID: c.id, Err: err}
	default:
		root, err = tree.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("load workspace %s: %w", c.id, err)
		}
	}

	c.sessions.CloseAll()
	gen := c.swap(root)
	c.persistMu.Lock()
	c.failedGen = 0
	if persisted {
		c.writtenGen = gen
	}
	c.persistMu.Unlock()

	c.log.Info("workspace loaded",
		zap.String("workspace", c.id),
		zap.Bool("scaffolded", !persisted),
		zap.Int("nodes", tree.Count(root)))

	if c.runtime != nil {
		rctx, cancel := context.WithTimeout(ctx, c.runtimeTimeout)
		defer cancel()
		if err := c.runtime.Mount(rctx, tree.Files(root)); err != nil {
			werr := &ExternalWriteError{Path: "/", Err: err}
			c.log.Warn("runtime mount failed", zap.Error(err))
			metrics.RecordRuntimeWriteFailure()
			c.notify.RuntimeWriteFailed("/", werr)
		}
	}
	return nil
}

func (c *Coordinator) scaffold(ctx context.Context) (*tree.Folder, error) {
	if c.scaffolder == nil || c.template == "" {
		return &tree.Folder{Name: tree.RootName}, nil
	}
	root, err := c.scaffolder.Scaffold(ctx, c.template)
	if err != nil {
		return nil, fmt.Errorf("scaffold %s: %w", c.template, err)
	}
	return root, nil
}

// Open opens the file at path in the session store and activates it.
func (c *Coordinator) Open(path tree.Path) (session.Session, error) {
	f, ok := c.index().File(path)
	if !ok {
		return session.Session{}, &PathResolutionError{Path: path.String(), Err: tree.ErrNotFound}
	}
	sess := c.sessions.Open(path, f)
	metrics.SetOpenSessions(c.sessions.Len())
	return sess, nil
}

// Edit records new live content for a session.
func (c *Coordinator) Edit(id, content string) (session.Session, error) {
	return c.sessions.Edit(id, content)
}

// Close drops a session without saving it.
func (c *Coordinator) Close(id string) error {
	err := c.sessions.Close(id)
	metrics.SetOpenSessions(c.sessions.Len())
	return err
}

// Save writes one session's live content to the runtime and the store.
//
// A clean session is skipped. A session whose file has disappeared fails
// with PathResolutionError before anything external is touched. A runtime
// failure is reported but does not stop persistence. The tree root and the
// session's saved baseline change only after the snapshot is durable.
func (c *Coordinator) Save(ctx context.Context, id string) (SaveResult, error) {
	sess, ok := c.sessions.Get(id)
	if !ok {
		return SaveResult{ID: id}, session.ErrNoSession
	}
	res := SaveResult{ID: id, Path: sess.Path.String()}

	if !sess.Dirty {
		res.Status = StatusSkipped
		metrics.RecordSave("skipped")
		c.notify.SaveSkipped(res.Path)
		return res, nil
	}

	if _, ok := c.index().File(sess.Path); !ok {
		err := &PathResolutionError{Path: res.Path, Err: tree.ErrNotFound}
		c.fail(res.Path, err)
		return res, err
	}

	content := sess.Live

	if c.runtime != nil {
		if err := c.writeRuntime(ctx, res.Path, content); err != nil {
			res.RuntimeErr = err
		}
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	root, gen := c.current()
	candidate, err := tree.UpdateContent(root, sess.Path, content)
	if err != nil {
		// deleted while the runtime write was in flight
		perr := &PathResolutionError{Path: res.Path, Err: err}
		c.fail(res.Path, perr)
		return res, perr
	}

	if err := c.persist(ctx, candidate, gen+1, false); err != nil {
		c.fail(res.Path, err)
		return res, err
	}

	c.swap(candidate)
	if err := c.sessions.Commit(id, content); err != nil {
		c.log.Debug("session closed during save", zap.String("id", id))
	}

	res.Status = StatusSaved
	metrics.RecordSave("saved")
	c.log.Info("file saved", zap.String("path", res.Path), zap.Int("bytes", len(content)))
	c.notify.FileSaved(res.Path)
	return res, nil
}

func (c *Coordinator) fail(path string, err error) {
	metrics.RecordSave("failed")
	c.log.Error("save failed", zap.String("path", path), zap.Error(err))
	c.notify.SaveFailed(path, err)
}

func (c *Coordinator) writeRuntime(ctx context.Context, path, content string) error {
	rctx, cancel := context.WithTimeout(ctx, c.runtimeTimeout)
	defer cancel()
	if err := c.runtime.WriteFile(rctx, path, content); err != nil {
		werr := &ExternalWriteError{Path: path, Err: err}
		metrics.RecordRuntimeWriteFailure()
		c.log.Warn("runtime write failed", zap.String("path", path), zap.Error(err))
		c.notify.RuntimeWriteFailed(path, werr)
		return werr
	}
	return nil
}

// SaveAll saves every dirty session concurrently. One failure does not
// stop the others.
func (c *Coordinator) SaveAll(ctx context.Context) SaveAllResult {
	dirty := c.sessions.Dirty()
	out := SaveAllResult{Errors: make(map[string]error)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, s := range dirty {
		id := s.ID
		g.Go(func() error {
			res, err := c.Save(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				out.Failed++
				out.Errors[id] = err
			case res.Status == StatusSkipped:
				out.Skipped++
			default:
				out.Saved++
			}
			return nil
		})
	}
	g.Wait()

	c.log.Info("save all finished",
		zap.Int("saved", out.Saved),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed))
	return out
}

// persist writes root as generation gen. A generation at or below the last
// durable one is never written. Only installed trees set track: a failed
// content save leaves the current tree as durable as it was.
func (c *Coordinator) persist(ctx context.Context, root *tree.Folder, gen uint64, track bool) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if gen <= c.writtenGen {
		return nil
	}
	data, err := tree.Marshal(root)
	if err != nil {
		return &PersistenceError{WorkspaceID: c.id, Err: err}
	}

	sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	start := time.Now()
	err = c.store.Save(sctx, c.id, data)
	metrics.RecordPersist(time.Since(start), err)
	if err != nil {
		if track && gen > c.failedGen {
			c.failedGen = gen
		}
		return &PersistenceError{WorkspaceID: c.id, Err: err}
	}
	c.writtenGen = gen
	return nil
}

// Unpersisted reports whether the latest structural change failed to
// persist and nothing newer has been written since.
func (c *Coordinator) Unpersisted() bool {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.failedGen > c.writtenGen
}

// Flush synchronously persists the current tree if it is not already
// durable.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	root, gen := c.current()
	if err := c.persist(ctx, root, gen, true); err != nil {
		c.notify.TreePersistFailed(err)
		return err
	}
	return nil
}

// Wait blocks until background persistence has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

type nopNotifier struct{}

func (nopNotifier) FileSaved(string)                 {}
func (nopNotifier) SaveSkipped(string)               {}
func (nopNotifier) SaveFailed(string, error)         {}
func (nopNotifier) RuntimeWriteFailed(string, error) {}
func (nopNotifier) TreeChanged(string, string)       {}
func (nopNotifier) TreePersistFailed(error)          {}
func (nopNotifier) SessionsClosed([]string)          {}
