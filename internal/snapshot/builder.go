// Package snapshot builds ordered directory trees and compares them for change detection.
package snapshot

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/types"
)

const (
	hiddenEntryPrefix      = "."
	relativePathSeparator  = "/"
	reasonEmptyPath        = "path is empty"
	reasonNotDirectory     = "not a directory"
	errorInvalidPatternFmt = "invalid exclude pattern %q"

	logListingFailed = "directory listing failed, treating as empty"
	logGitignoreRead = "reading .gitignore patterns failed, ignoring them"
	logCycleDetected = "directory resolves to an ancestor, not descending"
)

// Builder walks a root path and produces a snapshot tree.
// A Builder holds no state between calls and is safe for concurrent use.
type Builder struct {
	exclude      []string
	useGitignore bool
	logger       *zap.Logger
}

// Option adjusts a Builder.
type Option func(*Builder)

// WithGitignore drops entries matched by .gitignore files found under the root.
func WithGitignore(enabled bool) Option {
	return func(builder *Builder) {
		builder.useGitignore = enabled
	}
}

// NewBuilder returns a Builder that additionally drops entries whose
// slash-separated path relative to the root matches one of the exclude globs.
func NewBuilder(exclude []string, logger *zap.Logger, options ...Option) (*Builder, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf(errorInvalidPatternFmt, pattern)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := &Builder{exclude: slices.Clone(exclude), logger: logger}
	for _, option := range options {
		option(builder)
	}
	return builder, nil
}

// Snapshot validates that rootPath is an existing directory and builds its tree.
func (builder *Builder) Snapshot(rootPath string) (*types.Node, error) {
	if rootPath == "" {
		return nil, &types.InvalidPathError{Path: rootPath, Reason: reasonEmptyPath}
	}
	rootInfo, statError := os.Stat(rootPath)
	if statError != nil {
		return nil, &types.InvalidPathError{Path: rootPath, Reason: statError.Error()}
	}
	if !rootInfo.IsDir() {
		return nil, &types.InvalidPathError{Path: rootPath, Reason: reasonNotDirectory}
	}
	return builder.Build(rootPath), nil
}

type pendingDirectory struct {
	node         *types.Node
	relativePath string
	ancestors    []os.FileInfo
}

// Build produces the tree rooted at path without validating it. A path that is
// not a directory yields a file leaf. Listing failures below the root degrade
// to empty directories.
func (builder *Builder) Build(path string) *types.Node {
	rootInfo, statError := os.Stat(path)
	if statError != nil || !rootInfo.IsDir() {
		return types.NewFileNode(baseName(path), path)
	}

	root := types.NewDirectoryNode(baseName(path), path)
	ignoreMatcher := builder.loadGitignore(path)
	stack := []pendingDirectory{{node: root, ancestors: []os.FileInfo{rootInfo}}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, entryName := range builder.listEntries(current.node.Path) {
			childPath := joinPath(current.node.Path, entryName)
			childRelativePath := entryName
			if current.relativePath != "" {
				childRelativePath = current.relativePath + relativePathSeparator + entryName
			}
			if builder.isExcluded(childRelativePath) {
				continue
			}

			childInfo, childStatError := os.Stat(childPath)
			childIsDirectory := childStatError == nil && childInfo.IsDir()
			if ignoreMatcher != nil && ignoreMatcher.Match(strings.Split(childRelativePath, relativePathSeparator), childIsDirectory) {
				continue
			}
			if !childIsDirectory {
				current.node.Children = append(current.node.Children, types.NewFileNode(entryName, childPath))
				continue
			}

			childNode := types.NewDirectoryNode(entryName, childPath)
			current.node.Children = append(current.node.Children, childNode)
			if isAncestor(current.ancestors, childInfo) {
				builder.logger.Debug(logCycleDetected, zap.String("path", childPath))
				continue
			}
			stack = append(stack, pendingDirectory{
				node:         childNode,
				relativePath: childRelativePath,
				ancestors:    append(slices.Clone(current.ancestors), childInfo),
			})
		}
	}
	return root
}

// listEntries returns visible entry names of a directory in byte order.
// Any failure, including a partial listing, yields no entries.
func (builder *Builder) listEntries(directoryPath string) []string {
	directoryHandle, openError := os.Open(directoryPath)
	if openError != nil {
		builder.logger.Debug(logListingFailed, zap.String("path", directoryPath), zap.Error(openError))
		return nil
	}
	defer directoryHandle.Close()

	entryNames, readError := directoryHandle.Readdirnames(-1)
	if readError != nil {
		builder.logger.Debug(logListingFailed, zap.String("path", directoryPath), zap.Error(readError))
		return nil
	}

	visibleNames := entryNames[:0]
	for _, entryName := range entryNames {
		if strings.HasPrefix(entryName, hiddenEntryPrefix) {
			continue
		}
		visibleNames = append(visibleNames, entryName)
	}
	slices.Sort(visibleNames)
	return visibleNames
}

// loadGitignore returns nil when gitignore handling is off or unreadable.
func (builder *Builder) loadGitignore(rootPath string) gitignore.Matcher {
	if !builder.useGitignore {
		return nil
	}
	patterns, readError := gitignore.ReadPatterns(osfs.New(rootPath), []string{})
	if readError != nil {
		builder.logger.Debug(logGitignoreRead, zap.String("path", rootPath), zap.Error(readError))
		return nil
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}

func (builder *Builder) isExcluded(relativePath string) bool {
	for _, pattern := range builder.exclude {
		if matched, _ := doublestar.Match(pattern, relativePath); matched {
			return true
		}
	}
	return false
}

func isAncestor(ancestors []os.FileInfo, candidate os.FileInfo) bool {
	for _, ancestor := range ancestors {
		if os.SameFile(ancestor, candidate) {
			return true
		}
	}
	return false
}

// joinPath appends name to parent, inserting a separator only when parent does
// not already end with one. No other cleaning is applied.
func joinPath(parent, name string) string {
	if parent == "" || os.IsPathSeparator(parent[len(parent)-1]) {
		return parent + name
	}
	return parent + string(os.PathSeparator) + name
}

// baseName returns the text after the last path separator, which is empty for
// paths ending in a separator.
func baseName(path string) string {
	separatorIndex := strings.LastIndexFunc(path, func(character rune) bool {
		return character < utf8.RuneSelf && os.IsPathSeparator(uint8(character))
	})
	return path[separatorIndex+1:]
}
