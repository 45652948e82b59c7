package snapshot_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/types"
)

func sampleTree() *types.Node {
	root := types.NewDirectoryNode("r", "/r")
	sub := types.NewDirectoryNode("sub", "/r/sub")
	sub.Children = append(sub.Children, types.NewFileNode("x.go", "/r/sub/x.go"))
	root.Children = append(root.Children, types.NewFileNode("a.txt", "/r/a.txt"), sub)
	return root
}

func TestDiffersStructuralComparison(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*types.Node)
		expected bool
	}{
		{name: "identical", mutate: func(*types.Node) {}, expected: false},
		{name: "renamed file", mutate: func(root *types.Node) { root.Children[0].Name = "b.txt" }, expected: true},
		{name: "changed path", mutate: func(root *types.Node) { root.Children[0].Path = "/r/b.txt" }, expected: true},
		{name: "changed type", mutate: func(root *types.Node) { root.Children[0].Type = types.NodeTypeDirectory }, expected: true},
		{name: "added nested file", mutate: func(root *types.Node) {
			sub := root.Children[1]
			sub.Children = append(sub.Children, types.NewFileNode("y.go", "/r/sub/y.go"))
		}, expected: true},
		{name: "removed entry", mutate: func(root *types.Node) { root.Children = root.Children[:1] }, expected: true},
		{name: "reordered", mutate: func(root *types.Node) {
			root.Children[0], root.Children[1] = root.Children[1], root.Children[0]
		}, expected: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			previous := sampleTree()
			current := sampleTree()
			testCase.mutate(current)
			if actual := snapshot.Differs(previous, current); actual != testCase.expected {
				t.Fatalf("Differs = %t, want %t", actual, testCase.expected)
			}
			fingerprintsDiffer := snapshot.Fingerprint(previous) != snapshot.Fingerprint(current)
			if fingerprintsDiffer != testCase.expected {
				t.Fatalf("fingerprint difference = %t, want %t", fingerprintsDiffer, testCase.expected)
			}
		})
	}
}

func TestDiffersNilHandling(t *testing.T) {
	if snapshot.Differs(nil, nil) {
		t.Fatalf("two nil snapshots should be equal")
	}
	if !snapshot.Differs(nil, sampleTree()) || !snapshot.Differs(sampleTree(), nil) {
		t.Fatalf("nil and non-nil snapshots should differ")
	}
}

func TestDiffersSurvivesJSONRoundTrip(t *testing.T) {
	original := sampleTree()
	original.Children = append(original.Children, types.NewDirectoryNode("empty", "/r/empty"))
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded types.Node
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snapshot.Differs(original, &decoded) {
		t.Fatalf("round-tripped snapshot differs from original: %s", encoded)
	}
	if snapshot.Fingerprint(original) != snapshot.Fingerprint(&decoded) {
		t.Fatalf("round-tripped fingerprint differs")
	}
}

func TestConsecutiveSnapshotsAreEqualUntilMutation(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "a")
	mustWrite(t, filepath.Join(root, "dir", "b.txt"), "b")
	builder := newBuilder(t)

	before, err := builder.Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	again, err := builder.Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Differs(before, again) {
		t.Fatalf("unchanged directory produced different snapshots")
	}

	mutations := []struct {
		name   string
		mutate func(t *testing.T)
		undo   func(t *testing.T)
	}{
		{
			name:   "add",
			mutate: func(t *testing.T) { mustWrite(t, filepath.Join(root, "dir", "c.txt"), "c") },
			undo:   func(t *testing.T) { _ = os.Remove(filepath.Join(root, "dir", "c.txt")) },
		},
		{
			name:   "remove",
			mutate: func(t *testing.T) { _ = os.Remove(filepath.Join(root, "a.txt")) },
			undo:   func(t *testing.T) { mustWrite(t, filepath.Join(root, "a.txt"), "a") },
		},
		{
			name: "rename",
			mutate: func(t *testing.T) {
				_ = os.Rename(filepath.Join(root, "dir", "b.txt"), filepath.Join(root, "dir", "renamed.txt"))
			},
			undo: func(t *testing.T) {
				_ = os.Rename(filepath.Join(root, "dir", "renamed.txt"), filepath.Join(root, "dir", "b.txt"))
			},
		},
	}
	for _, mutation := range mutations {
		t.Run(mutation.name, func(t *testing.T) {
			mutation.mutate(t)
			defer mutation.undo(t)
			after, err := builder.Snapshot(root)
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if !snapshot.Differs(before, after) {
				t.Fatalf("expected %s to be detected", mutation.name)
			}
		})
	}
}

func TestChangesListsAddedAndRemovedPaths(t *testing.T) {
	previous := sampleTree()
	current := sampleTree()
	current.Children[0] = types.NewFileNode("b.txt", "/r/b.txt")
	current.Children[1].Children[0] = types.NewDirectoryNode("x.go", "/r/sub/x.go")

	changes := snapshot.Changes(previous, current)
	expected := []types.Change{
		{Path: "/r/a.txt", Kind: types.ChangeRemoved, Type: types.NodeTypeFile},
		{Path: "/r/b.txt", Kind: types.ChangeAdded, Type: types.NodeTypeFile},
		{Path: "/r/sub/x.go", Kind: types.ChangeRemoved, Type: types.NodeTypeFile},
		{Path: "/r/sub/x.go", Kind: types.ChangeAdded, Type: types.NodeTypeDirectory},
	}
	if len(changes) != len(expected) {
		t.Fatalf("expected %d changes, got %+v", len(expected), changes)
	}
	for index := range expected {
		if changes[index] != expected[index] {
			t.Fatalf("change %d: got %+v, want %+v", index, changes[index], expected[index])
		}
	}
	if len(snapshot.Changes(previous, sampleTree())) != 0 {
		t.Fatalf("expected no changes for identical trees")
	}
}
