package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire shapes of the persisted workspace document. A folder is recognised
// by its "folderName" key; this is the only place that inspects shape.
type wireFolder struct {
	FolderName string            `json:"folderName"`
	Items      []json.RawMessage `json:"items"`
}

type wireFile struct {
	Filename      string `json:"filename"`
	FileExtension string `json:"fileExtension"`
	Content       string `json:"content"`
}

type wireProbe struct {
	FolderName *string `json:"folderName"`
}

// Marshal serializes the whole tree as a single JSON document.
func Marshal(root *Folder) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("marshal tree: nil root")
	}
	return json.Marshal(toWire(root))
}

// MarshalIndent is Marshal with indentation, for export.
func MarshalIndent(root *Folder) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("marshal tree: nil root")
	}
	return json.MarshalIndent(toWire(root), "", "  ")
}

func toWire(n Node) any {
	switch v := n.(type) {
	case *File:
		return wireFile{Filename: v.Name, FileExtension: v.Extension, Content: v.Content}
	case *Folder:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = toWire(item)
		}
		return struct {
			FolderName string `json:"folderName"`
			Items      []any  `json:"items"`
		}{v.Name, items}
	}
	return nil
}

// Unmarshal parses a persisted document. A bare JSON array is accepted as
// the item list of a root folder named "Root", which is how template
// scaffolds used to be delivered.
func Unmarshal(data []byte) (*Folder, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		root := &Folder{Name: RootName}
		for i, raw := range items {
			n, err := decodeNode(raw)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tree: item %d: %w", i, err)
			}
			root.Items = append(root.Items, n)
		}
		return root, nil
	}

	n, err := decodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	root, ok := n.(*Folder)
	if !ok {
		return nil, fmt.Errorf("unmarshal tree: root is not a folder")
	}
	return root, nil
}

// RootName is the name given to scaffolded workspace roots.
const RootName = "Root"

func decodeNode(raw json.RawMessage) (Node, error) {
	var probe wireProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.FolderName == nil {
		var f wireFile
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return &File{Name: f.Filename, Extension: f.FileExtension, Content: f.Content}, nil
	}

	var wf wireFolder
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, err
	}
	folder := &Folder{Name: wf.FolderName, Items: make([]Node, 0, len(wf.Items))}
	for i, item := range wf.Items {
		child, err := decodeNode(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", wf.FolderName, i, err)
		}
		folder.Items = append(folder.Items, child)
	}
	return folder, nil
}
