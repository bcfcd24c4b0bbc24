package tree

// Index caches path -> node for one root. It is only meaningful while the
// owner still holds that exact root; build a new one after every mutation.
type Index struct {
	root   *Folder
	byPath map[string]Node
}

// NewIndex walks root once.
func NewIndex(root *Folder) *Index {
	idx := &Index{root: root, byPath: make(map[string]Node)}
	Walk(root, func(p Path, n Node) error {
		idx.byPath[p.String()] = n
		return nil
	})
	return idx
}

// Root returns the tree this index was built for.
func (i *Index) Root() *Folder {
	return i.root
}

// Valid reports whether the index still describes root.
func (i *Index) Valid(root *Folder) bool {
	return i != nil && i.root == root
}

// Lookup is an O(1) Lookup for non-root paths.
func (i *Index) Lookup(p Path) (Node, bool) {
	if len(p) == 0 {
		return i.root, i.root != nil
	}
	n, ok := i.byPath[p.String()]
	return n, ok
}

// File returns the file at p.
func (i *Index) File(p Path) (*File, bool) {
	n, ok := i.Lookup(p)
	if !ok {
		return nil, false
	}
	f, ok := n.(*File)
	return f, ok
}

// Len returns the number of indexed nodes.
func (i *Index) Len() int {
	return len(i.byPath)
}
