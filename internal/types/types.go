// Package types defines every cross‑package data structure used by repoview.
package types

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	OperationSnapshot  = "snapshot"
	OperationAggregate = "aggregate"
	OperationChanges   = "changes"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"

	ChangeAdded   = "added"
	ChangeRemoved = "removed"

	// NotAFileMessage is the body of a section whose path is not a readable regular file.
	NotAFileMessage = "(Not a file or not found)"
	// InvalidFolderMessage is reported when a snapshot root is not an existing directory.
	InvalidFolderMessage = "Invalid folder path"
)

// Node is one entry of a snapshot tree. Directories always carry a non-nil
// Children slice; files never do.
type Node struct {
	XMLName  xml.Name `json:"-" xml:"node"`
	Name     string   `json:"name" xml:"name"`
	Path     string   `json:"path" xml:"path"`
	Type     string   `json:"type" xml:"type"`
	Children []*Node  `json:"children,omitempty" xml:"children>node,omitempty"`
}

// IsDirectory reports whether the node is a directory node.
func (node *Node) IsDirectory() bool {
	return node != nil && node.Type == NodeTypeDirectory
}

// NewDirectoryNode returns a directory node with an empty, non-nil child list.
func NewDirectoryNode(name, path string) *Node {
	return &Node{Name: name, Path: path, Type: NodeTypeDirectory, Children: []*Node{}}
}

// NewFileNode returns a file leaf.
func NewFileNode(name, path string) *Node {
	return &Node{Name: name, Path: path, Type: NodeTypeFile}
}

// Section is the outcome of reading one requested path during aggregation.
// Exactly one of Content or Error is meaningful, selected by Failed.
type Section struct {
	Path    string `json:"path" xml:"path"`
	Content string `json:"content,omitempty" xml:"content,omitempty"`
	Error   string `json:"error,omitempty" xml:"error,omitempty"`
	Failed  bool   `json:"failed" xml:"failed,attr"`
	Bytes   int64  `json:"-" xml:"-"`
	Tokens  int    `json:"tokens,omitempty" xml:"tokens,omitempty"`
}

// Body returns the text rendered under the section header.
func (section Section) Body() string {
	if section.Failed {
		return section.Error
	}
	return section.Content
}

// AggregationSummary captures totals over an aggregation result.
type AggregationSummary struct {
	Files     int    `json:"files" xml:"files"`
	Errors    int    `json:"errors" xml:"errors"`
	TotalSize string `json:"totalSize" xml:"totalSize"`
	Tokens    int    `json:"tokens,omitempty" xml:"tokens,omitempty"`
	Model     string `json:"model,omitempty" xml:"model,omitempty"`
}

// AggregationResult is the ordered list of sections for one aggregate request.
type AggregationResult struct {
	XMLName  xml.Name            `json:"-" xml:"aggregation"`
	Sections []Section           `json:"sections" xml:"sections>section"`
	Summary  *AggregationSummary `json:"summary,omitempty" xml:"summary,omitempty"`
}

// Change describes one path present in only one of two snapshots.
type Change struct {
	Path string `json:"path" xml:"path,attr"`
	Kind string `json:"kind" xml:"kind,attr"`
	Type string `json:"type" xml:"type,attr"`
}

// InvalidPathError reports a snapshot root that is empty, missing, or not a directory.
type InvalidPathError struct {
	Path   string
	Reason string
}

// Error returns the error string.
func (pathError *InvalidPathError) Error() string {
	if pathError.Reason == "" {
		return fmt.Sprintf("%s: %q", InvalidFolderMessage, pathError.Path)
	}
	return fmt.Sprintf("%s: %q: %s", InvalidFolderMessage, pathError.Path, pathError.Reason)
}

type fileWireNode struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

type directoryWireNode struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Type     string  `json:"type"`
	Children []*Node `json:"children"`
}

// MarshalJSON always emits "children" for directories, even when empty, and never for files.
func (node Node) MarshalJSON() ([]byte, error) {
	if node.Type != NodeTypeDirectory {
		return json.Marshal(fileWireNode{Name: node.Name, Path: node.Path, Type: node.Type})
	}
	children := node.Children
	if children == nil {
		children = []*Node{}
	}
	return json.Marshal(directoryWireNode{Name: node.Name, Path: node.Path, Type: node.Type, Children: children})
}
