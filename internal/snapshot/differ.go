package snapshot

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/temirov/repoview/internal/types"
)

type nodePair struct {
	left  *types.Node
	right *types.Node
}

// Differs reports whether two snapshots are structurally different. Nodes are
// compared by type, name, and path; directory children are compared pairwise
// in order, so a reordering counts as a difference.
func Differs(previous, current *types.Node) bool {
	pending := []nodePair{{left: previous, right: current}}
	for len(pending) > 0 {
		pair := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if pair.left == nil || pair.right == nil {
			if pair.left != pair.right {
				return true
			}
			continue
		}
		if pair.left.Type != pair.right.Type || pair.left.Name != pair.right.Name || pair.left.Path != pair.right.Path {
			return true
		}
		if len(pair.left.Children) != len(pair.right.Children) {
			return true
		}
		for childIndex := range pair.left.Children {
			pending = append(pending, nodePair{left: pair.left.Children[childIndex], right: pair.right.Children[childIndex]})
		}
	}
	return false
}

// Fingerprint returns a hex xxh3-128 digest of the tree structure. Trees for
// which Differs is false share a fingerprint.
func Fingerprint(node *types.Node) string {
	var encoded []byte
	appendField := func(value string) {
		encoded = binary.AppendUvarint(encoded, uint64(len(value)))
		encoded = append(encoded, value...)
	}

	pending := []*types.Node{node}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if current == nil {
			appendField("")
			continue
		}
		appendField(current.Type)
		appendField(current.Name)
		appendField(current.Path)
		encoded = binary.AppendUvarint(encoded, uint64(len(current.Children)))
		for childIndex := len(current.Children) - 1; childIndex >= 0; childIndex-- {
			pending = append(pending, current.Children[childIndex])
		}
	}
	return fmt.Sprintf("%x", xxh3.Hash128(encoded).Bytes())
}

// Changes lists the paths present in only one of the two snapshots, sorted by
// path. A path whose type changed is reported as removed and added.
func Changes(previous, current *types.Node) []types.Change {
	previousEntries := flatten(previous)
	currentEntries := flatten(current)

	var changes []types.Change
	for path, nodeType := range currentEntries {
		if previousType, found := previousEntries[path]; !found || previousType != nodeType {
			changes = append(changes, types.Change{Path: path, Kind: types.ChangeAdded, Type: nodeType})
		}
	}
	for path, nodeType := range previousEntries {
		if currentType, found := currentEntries[path]; !found || currentType != nodeType {
			changes = append(changes, types.Change{Path: path, Kind: types.ChangeRemoved, Type: nodeType})
		}
	}
	sort.Slice(changes, func(left, right int) bool {
		if changes[left].Path != changes[right].Path {
			return changes[left].Path < changes[right].Path
		}
		return changes[left].Kind > changes[right].Kind
	})
	return changes
}

func flatten(root *types.Node) map[string]string {
	entries := make(map[string]string)
	pending := []*types.Node{root}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if current == nil {
			continue
		}
		entries[current.Path] = current.Type
		pending = append(pending, current.Children...)
	}
	return entries
}
