package tree

import "strings"

// Path is the sequence of folder names from the root (exclusive) to a node's
// parent, followed by the node's own display name. The empty path is the root.
type Path []string

// ParsePath splits a slash-joined path. Leading, trailing and repeated
// slashes are ignored.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// String joins the segments with "/".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Parent returns the path of the containing folder.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Base returns the last segment.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Child returns a new path with seg appended.
func (p Path) Child(seg string) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, seg)
}

// Equal reports segment-wise equality.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p equals prefix or lies beneath it.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Rebase replaces the leading old prefix with repl. p must have old as prefix.
func (p Path) Rebase(old, repl Path) Path {
	out := make(Path, 0, len(repl)+len(p)-len(old))
	out = append(out, repl...)
	return append(out, p[len(old):]...)
}
