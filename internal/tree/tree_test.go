package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Folder {
	return &Folder{Name: RootName, Items: []Node{
		&File{Name: "package", Extension: "json", Content: "{}"},
		&Folder{Name: "src", Items: []Node{
			&File{Name: "index", Extension: "ts", Content: "a"},
			&Folder{Name: "components", Items: []Node{
				&File{Name: "Button", Extension: "tsx", Content: "<button/>"},
			}},
		}},
		&Folder{Name: "lib", Items: []Node{
			&File{Name: "index", Extension: "ts", Content: "lib"},
		}},
	}}
}

func TestResolve_FirstPreOrderMatch(t *testing.T) {
	root := sampleTree()

	p, ok := Resolve(root, FileRef("index", "ts"))
	require.True(t, ok)
	assert.Equal(t, "src/index.ts", p.String())

	p, ok = Resolve(root, FileRef("Button", "tsx"))
	require.True(t, ok)
	assert.Equal(t, Path{"src", "components", "Button.tsx"}, p)

	p, ok = Resolve(root, FolderRef("lib"))
	require.True(t, ok)
	assert.Equal(t, "lib", p.String())

	_, ok = Resolve(root, FileRef("missing", "ts"))
	assert.False(t, ok)

	_, ok = Resolve(nil, FileRef("index", "ts"))
	assert.False(t, ok)
}

func TestResolve_DescendsBeforeLaterSiblings(t *testing.T) {
	root := &Folder{Name: RootName, Items: []Node{
		&Folder{Name: "a", Items: []Node{&File{Name: "x", Extension: "js"}}},
		&File{Name: "x", Extension: "js"},
	}}
	p, ok := Resolve(root, FileRef("x", "js"))
	require.True(t, ok)
	assert.Equal(t, "a/x.js", p.String())
}

func TestLookup(t *testing.T) {
	root := sampleTree()

	n, err := Lookup(root, ParsePath("src/components/Button.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "<button/>", n.(*File).Content)

	n, err = Lookup(root, nil)
	require.NoError(t, err)
	assert.Same(t, root, n)

	_, err = Lookup(root, ParsePath("src/nope.ts"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LookupFile(root, ParsePath("src"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsert(t *testing.T) {
	root := sampleTree()

	out, err := Insert(root, []string{"src"}, &File{Name: "util", Extension: "ts", Content: "u"})
	require.NoError(t, err)

	f, err := LookupFile(out, ParsePath("src/util.ts"))
	require.NoError(t, err)
	assert.Equal(t, "u", f.Content)

	// input untouched
	_, err = LookupFile(root, ParsePath("src/util.ts"))
	assert.ErrorIs(t, err, ErrNotFound)

	out, err = Insert(out, nil, &Folder{Name: "public"})
	require.NoError(t, err)
	assert.Equal(t, "public", out.Items[len(out.Items)-1].DisplayName())
}

func TestInsert_Errors(t *testing.T) {
	root := sampleTree()

	_, err := Insert(root, []string{"src", "missing"}, &File{Name: "a", Extension: "ts"})
	assert.ErrorIs(t, err, ErrNotFound)

	// a file segment is not a folder
	_, err = Insert(root, []string{"package.json"}, &File{Name: "a", Extension: "ts"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Insert(root, []string{"src"}, &File{Name: "index", Extension: "ts"})
	assert.ErrorIs(t, err, ErrExists)

	_, err = Insert(root, nil, &Folder{Name: "a/b"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Insert(root, nil, &File{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRemove(t *testing.T) {
	root := sampleTree()

	out, removed, err := Remove(root, nil, FolderRef("src"))
	require.NoError(t, err)
	assert.Equal(t, "src", removed.DisplayName())
	assert.Len(t, out.Items, 2)
	assert.Len(t, root.Items, 3)

	out, removed, err = Remove(root, []string{"lib"}, FileRef("index", "ts"))
	require.NoError(t, err)
	assert.Equal(t, "lib", removed.(*File).Content)
	lib, _ := Lookup(out, ParsePath("lib"))
	assert.Empty(t, lib.(*Folder).Items)

	_, _, err = Remove(root, nil, FileRef("ghost", "ts"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRename(t *testing.T) {
	root := sampleTree()

	out, err := Rename(root, ParsePath("src/index.ts"), "main", "tsx")
	require.NoError(t, err)
	_, err = LookupFile(out, ParsePath("src/main.tsx"))
	require.NoError(t, err)
	// position preserved
	src, _ := Lookup(out, ParsePath("src"))
	assert.Equal(t, "main.tsx", src.(*Folder).Items[0].DisplayName())

	out, err = Rename(root, ParsePath("src"), "app", "ignored")
	require.NoError(t, err)
	_, err = LookupFile(out, ParsePath("app/components/Button.tsx"))
	require.NoError(t, err)

	_, err = Rename(root, ParsePath("src"), "lib", "")
	assert.ErrorIs(t, err, ErrExists)

	_, err = Rename(root, nil, "x", "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRename_SameNameIsNoOp(t *testing.T) {
	root := sampleTree()

	out, err := Rename(root, ParsePath("src/index.ts"), "index", "ts")
	require.NoError(t, err)
	assert.True(t, Equal(root, out))

	out, err = Rename(root, ParsePath("lib"), "lib", "")
	require.NoError(t, err)
	assert.True(t, Equal(root, out))
}

func TestUpdateContent_TargetsPathOnly(t *testing.T) {
	root := sampleTree()

	out, err := UpdateContent(root, ParsePath("src/index.ts"), "ab")
	require.NoError(t, err)

	f, _ := LookupFile(out, ParsePath("src/index.ts"))
	assert.Equal(t, "ab", f.Content)
	other, _ := LookupFile(out, ParsePath("lib/index.ts"))
	assert.Equal(t, "lib", other.Content)

	orig, _ := LookupFile(root, ParsePath("src/index.ts"))
	assert.Equal(t, "a", orig.Content)
	assert.False(t, Equal(root, out))

	_, err = UpdateContent(root, ParsePath("src/ghost.ts"), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarshalRoundTrip(t *testing.T) {
	roots := []*Folder{
		sampleTree(),
		{Name: RootName},
		{Name: "deep", Items: []Node{&Folder{Name: "a", Items: []Node{&Folder{Name: "b"}}}}},
		{Name: RootName, Items: []Node{&File{Name: ".env"}, &File{Name: "unicode", Extension: "md", Content: "héllo\n\t\"q\""}}},
	}
	for _, root := range roots {
		data, err := Marshal(root)
		require.NoError(t, err)
		back, err := Unmarshal(data)
		require.NoError(t, err)
		assert.True(t, Equal(root, back), "round trip of %s", data)
	}
}

func TestUnmarshal_WireShape(t *testing.T) {
	doc := `{"folderName":"Root","items":[
		{"filename":"index","fileExtension":"js","content":"x"},
		{"folderName":"src","items":[]}
	]}`
	root, err := Unmarshal([]byte(doc))
	require.NoError(t, err)
	require.Len(t, root.Items, 2)
	assert.Equal(t, KindFile, root.Items[0].Kind())
	assert.Equal(t, KindFolder, root.Items[1].Kind())

	arr := `[{"filename":"a","fileExtension":"ts","content":""}]`
	root, err = Unmarshal([]byte(arr))
	require.NoError(t, err)
	assert.Equal(t, RootName, root.Name)
	require.Len(t, root.Items, 1)

	_, err = Unmarshal([]byte(`{"filename":"a"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestFilesAndIndex(t *testing.T) {
	root := sampleTree()

	files := Files(root)
	assert.Equal(t, map[string]string{
		"package.json":              "{}",
		"src/index.ts":              "a",
		"src/components/Button.tsx": "<button/>",
		"lib/index.ts":              "lib",
	}, files)

	assert.Equal(t, 7, Count(root))
	assert.Len(t, FilesUnder(root, ParsePath("src")), 2)

	idx := NewIndex(root)
	assert.True(t, idx.Valid(root))
	assert.False(t, idx.Valid(Clone(root)))
	f, ok := idx.File(ParsePath("lib/index.ts"))
	require.True(t, ok)
	assert.Equal(t, "lib", f.Content)
	_, ok = idx.File(ParsePath("src"))
	assert.False(t, ok)
	assert.Equal(t, 7, idx.Len())
}

func TestPathHelpers(t *testing.T) {
	p := ParsePath("/src//components/Button.tsx/")
	assert.Equal(t, Path{"src", "components", "Button.tsx"}, p)
	assert.Equal(t, "Button.tsx", p.Base())
	assert.Equal(t, "src/components", p.Parent().String())
	assert.True(t, p.HasPrefix(ParsePath("src")))
	assert.False(t, p.HasPrefix(ParsePath("lib")))
	assert.Equal(t, "app/components/Button.tsx", p.Rebase(ParsePath("src"), ParsePath("app")).String())

	name, ext := SplitFileName("archive.tar.gz")
	assert.Equal(t, "archive.tar", name)
	assert.Equal(t, "gz", ext)
	name, ext = SplitFileName(".gitignore")
	assert.Equal(t, ".gitignore", name)
	assert.Equal(t, "", ext)
}
