// Package tree implements the in-memory project tree: folders owning files
// and sub-folders, addressed by paths derived from traversal.
//
// Trees are treated as immutable values. Every mutator returns a new root
// and leaves its input untouched, so a reader holding an older root keeps
// observing a consistent snapshot.
package tree

import (
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("node not found")
	ErrExists      = errors.New("node already exists")
	ErrNotFolder   = errors.New("path segment is not a folder")
	ErrInvalidName = errors.New("invalid node name")
)

// Kind discriminates the two node variants.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Node is either a *File or a *Folder.
type Node interface {
	Kind() Kind
	// DisplayName is the path segment naming this node.
	DisplayName() string
	Ref() Ref
	clone() Node
}

// File is a leaf holding source text.
type File struct {
	Name      string
	Extension string
	Content   string
}

// Folder exclusively owns its items, in order.
type Folder struct {
	Name  string
	Items []Node
}

func (f *File) Kind() Kind   { return KindFile }
func (f *Folder) Kind() Kind { return KindFolder }

func (f *File) DisplayName() string {
	return FileName(f.Name, f.Extension)
}

func (f *Folder) DisplayName() string {
	return f.Name
}

func (f *File) Ref() Ref   { return Ref{Kind: KindFile, Name: f.Name, Extension: f.Extension} }
func (f *Folder) Ref() Ref { return Ref{Kind: KindFolder, Name: f.Name} }

func (f *File) clone() Node {
	c := *f
	return &c
}

func (f *Folder) clone() Node {
	c := &Folder{Name: f.Name, Items: make([]Node, len(f.Items))}
	for i, item := range f.Items {
		c.Items[i] = item.clone()
	}
	return c
}

// Child returns the first direct child matching ref.
func (f *Folder) Child(ref Ref) (Node, int) {
	for i, item := range f.Items {
		if ref.Matches(item) {
			return item, i
		}
	}
	return nil, -1
}

// folder returns the direct sub-folder called name.
func (f *Folder) folder(name string) *Folder {
	for _, item := range f.Items {
		if sub, ok := item.(*Folder); ok && sub.Name == name {
			return sub
		}
	}
	return nil
}

// Ref identifies a node relative to its parent folder: (name, extension)
// for files, name for folders.
type Ref struct {
	Kind      Kind
	Name      string
	Extension string
}

// FileRef is shorthand for a file reference.
func FileRef(name, ext string) Ref {
	return Ref{Kind: KindFile, Name: name, Extension: ext}
}

// FolderRef is shorthand for a folder reference.
func FolderRef(name string) Ref {
	return Ref{Kind: KindFolder, Name: name}
}

// Matches reports whether n has this identity.
func (r Ref) Matches(n Node) bool {
	switch v := n.(type) {
	case *File:
		return r.Kind == KindFile && v.Name == r.Name && v.Extension == r.Extension
	case *Folder:
		return r.Kind == KindFolder && v.Name == r.Name
	}
	return false
}

func (r Ref) String() string {
	if r.Kind == KindFolder {
		return r.Name
	}
	return FileName(r.Name, r.Extension)
}

// FileName joins a file's name and extension.
func FileName(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// SplitFileName splits on the last dot. Dotfiles such as ".env" keep the
// whole string as the name.
func SplitFileName(base string) (name, ext string) {
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return base, ""
	}
	return base[:i], base[i+1:]
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

func validate(n Node) error {
	switch v := n.(type) {
	case *File:
		if !validName(v.Name) || strings.Contains(v.Extension, "/") {
			return ErrInvalidName
		}
	case *Folder:
		if !validName(v.Name) {
			return ErrInvalidName
		}
	default:
		return ErrInvalidName
	}
	return nil
}
