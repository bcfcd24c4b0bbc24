// internal/workspace/errors.go
package workspace

import "fmt"

// PathResolutionError means the file a session refers to no longer exists in
// the tree. Nothing external has been written when it is returned.
type PathResolutionError struct {
	Path string
	Err  error
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Path, e.Err)
}

func (e *PathResolutionError) Unwrap() error { return e.Err }

// ExternalWriteError is a failed best-effort write to the runtime
// filesystem. It never blocks persistence.
type ExternalWriteError struct {
	Path string
	Err  error
}

func (e *ExternalWriteError) Error() string {
	return fmt.Sprintf("runtime write %s: %v", e.Path, e.Err)
}

func (e *ExternalWriteError) Unwrap() error { return e.Err }

// PersistenceError is a failed snapshot write. The tree and sessions are
// left exactly as they were before the attempt.
type PersistenceError struct {
	WorkspaceID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist workspace %s: %v", e.WorkspaceID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
