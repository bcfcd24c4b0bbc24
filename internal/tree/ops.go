package tree

import "fmt"

// Resolve finds the path of the first node matching ref in a pre-order
// depth-first walk. Duplicate identities in different branches resolve to
// whichever is encountered first; callers that care must keep them unique.
func Resolve(root *Folder, ref Ref) (Path, bool) {
	if root == nil {
		return nil, false
	}
	return resolve(root, ref, nil)
}

func resolve(folder *Folder, ref Ref, prefix Path) (Path, bool) {
	for _, item := range folder.Items {
		if ref.Matches(item) {
			return prefix.Child(item.DisplayName()), true
		}
		if sub, ok := item.(*Folder); ok {
			if p, found := resolve(sub, ref, prefix.Child(sub.Name)); found {
				return p, true
			}
		}
	}
	return nil, false
}

// Lookup walks path segment by segment. The empty path returns the root.
func Lookup(root *Folder, path Path) (Node, error) {
	if root == nil {
		return nil, ErrNotFound
	}
	parent, err := walkFolders(root, path.Parent())
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return root, nil
	}
	node, _ := childByName(parent, path.Base())
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return node, nil
}

// LookupFile is Lookup restricted to files.
func LookupFile(root *Folder, path Path) (*File, error) {
	node, err := Lookup(root, path)
	if err != nil {
		return nil, err
	}
	f, ok := node.(*File)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a folder", ErrNotFound, path)
	}
	return f, nil
}

func walkFolders(root *Folder, segments []string) (*Folder, error) {
	cur := root
	for i, seg := range segments {
		next := cur.folder(seg)
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Path(segments[:i+1]))
		}
		cur = next
	}
	return cur, nil
}

func childByName(folder *Folder, name string) (Node, int) {
	for i, item := range folder.Items {
		if item.DisplayName() == name {
			return item, i
		}
	}
	return nil, -1
}

// Insert appends node to the folder at parent (empty = root).
func Insert(root *Folder, parent []string, node Node) (*Folder, error) {
	if err := validate(node); err != nil {
		return nil, err
	}
	out := Clone(root)
	folder, err := walkFolders(out, parent)
	if err != nil {
		return nil, err
	}
	if existing, _ := folder.Child(node.Ref()); existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, Path(parent).Child(node.DisplayName()))
	}
	folder.Items = append(folder.Items, node.clone())
	return out, nil
}

// Remove deletes the first child of the folder at parent that matches ref
// and returns the new root together with the removed subtree.
func Remove(root *Folder, parent []string, ref Ref) (*Folder, Node, error) {
	out := Clone(root)
	folder, err := walkFolders(out, parent)
	if err != nil {
		return nil, nil, err
	}
	removed, idx := folder.Child(ref)
	if removed == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, Path(parent).Child(ref.String()))
	}
	items := make([]Node, 0, len(folder.Items)-1)
	items = append(items, folder.Items[:idx]...)
	folder.Items = append(items, folder.Items[idx+1:]...)
	return out, removed, nil
}

// Rename changes the name (and, for files, extension) of the node at path
// in place. Its position among siblings is unchanged.
func Rename(root *Folder, path Path, newName, newExt string) (*Folder, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: cannot rename root", ErrInvalidName)
	}
	out := Clone(root)
	folder, err := walkFolders(out, path.Parent())
	if err != nil {
		return nil, err
	}
	node, _ := childByName(folder, path.Base())
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var target Ref
	switch n := node.(type) {
	case *File:
		target = FileRef(newName, newExt)
		if target == n.Ref() {
			return out, nil
		}
		if err := validate(&File{Name: newName, Extension: newExt}); err != nil {
			return nil, err
		}
	case *Folder:
		target = FolderRef(newName)
		if target == n.Ref() {
			return out, nil
		}
		if err := validate(&Folder{Name: newName}); err != nil {
			return nil, err
		}
	}
	if existing, _ := folder.Child(target); existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path.Parent().Child(target.String()))
	}

	switch n := node.(type) {
	case *File:
		n.Name, n.Extension = newName, newExt
	case *Folder:
		n.Name = newName
	}
	return out, nil
}

// UpdateContent returns a deep copy of root with the content of the file at
// path replaced.
func UpdateContent(root *Folder, path Path, content string) (*Folder, error) {
	out := Clone(root)
	f, err := LookupFile(out, path)
	if err != nil {
		return nil, err
	}
	f.Content = content
	return out, nil
}

// Clone deep-copies a tree.
func Clone(root *Folder) *Folder {
	if root == nil {
		return &Folder{}
	}
	return root.clone().(*Folder)
}

// Equal reports structural equality, including item order and content.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *File:
		y, ok := b.(*File)
		return ok && *x == *y
	case *Folder:
		y, ok := b.(*Folder)
		if !ok || x.Name != y.Name || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}

// Walk visits every node below root in pre-order. Returning a non-nil error
// stops the walk.
func Walk(root *Folder, fn func(Path, Node) error) error {
	if root == nil {
		return nil
	}
	return walk(root, nil, fn)
}

func walk(folder *Folder, prefix Path, fn func(Path, Node) error) error {
	for _, item := range folder.Items {
		p := prefix.Child(item.DisplayName())
		if err := fn(p, item); err != nil {
			return err
		}
		if sub, ok := item.(*Folder); ok {
			if err := walk(sub, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files flattens the tree into slash-joined path -> content.
func Files(root *Folder) map[string]string {
	files := make(map[string]string)
	Walk(root, func(p Path, n Node) error {
		if f, ok := n.(*File); ok {
			files[p.String()] = f.Content
		}
		return nil
	})
	return files
}

// FilesUnder lists the paths of every file at or beneath prefix.
func FilesUnder(root *Folder, prefix Path) []Path {
	var out []Path
	Walk(root, func(p Path, n Node) error {
		if _, ok := n.(*File); ok && p.HasPrefix(prefix) {
			out = append(out, p)
		}
		return nil
	})
	return out
}

// Count returns the number of nodes below root.
func Count(root *Folder) int {
	n := 0
	Walk(root, func(Path, Node) error {
		n++
		return nil
	})
	return n
}
