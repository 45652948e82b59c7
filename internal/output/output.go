// Package output renders snapshots, aggregation results, and change lists as
// raw text, JSON, or XML.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/repoview/internal/aggregate"
	"github.com/temirov/repoview/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	xmlHeader = xml.Header

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	directorySuffix   = "/"
	summaryLineFormat = "Summary: %d file(s), %d error(s), %s"
	tokensSuffix      = ", %d tokens"
	modelSuffix       = " (%s)"
	noChangesLine     = "No changes"
	reorderedLine     = "Changed (same paths, different structure)"
	changeLineFormat  = "%s %s (%s)\n"
	addedMarker       = "+"
	removedMarker     = "-"

	errorUnsupportedFormat = "unsupported format %q"
)

// IsSupportedFormat reports whether format names a known renderer.
func IsSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML:
		return true
	default:
		return false
	}
}

// WriteTree renders a snapshot in the requested format.
func WriteTree(writer io.Writer, node *types.Node, format string) error {
	switch format {
	case types.FormatRaw:
		WriteTreeRaw(writer, node)
		return nil
	case types.FormatJSON:
		return writeJSON(writer, node)
	case types.FormatXML:
		return writeXML(writer, node)
	default:
		return fmt.Errorf(errorUnsupportedFormat, format)
	}
}

// WriteTreeRaw draws a snapshot with box-drawing connectors. Directories carry
// a trailing slash.
func WriteTreeRaw(writer io.Writer, node *types.Node) {
	if node == nil {
		return
	}
	renderTreeNode(writer, node, "", true, true)
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node *types.Node, prefix string, isRoot bool, isLast bool) {
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	label := node.Name
	if isRoot {
		label = node.Path
	}
	if !node.IsDirectory() {
		fmt.Fprintf(writer, "%s%s\n", linePrefix, label)
		return
	}
	if !strings.HasSuffix(label, directorySuffix) {
		label += directorySuffix
	}
	fmt.Fprintf(writer, "%s%s\n", linePrefix, label)
	for index, child := range node.Children {
		if child == nil {
			continue
		}
		renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1)
	}
}

// WriteAggregation renders an aggregation result. The raw format is the
// combined artifact followed, when present, by a summary line.
func WriteAggregation(writer io.Writer, result types.AggregationResult, format string) error {
	switch format {
	case types.FormatRaw:
		if writeError := aggregate.Write(writer, result); writeError != nil {
			return writeError
		}
		if result.Summary != nil {
			_, writeError := fmt.Fprintln(writer, FormatSummaryLine(result.Summary))
			return writeError
		}
		return nil
	case types.FormatJSON:
		return writeJSON(writer, result)
	case types.FormatXML:
		return writeXML(writer, result)
	default:
		return fmt.Errorf(errorUnsupportedFormat, format)
	}
}

// FormatSummaryLine renders totals on a single line.
func FormatSummaryLine(summary *types.AggregationSummary) string {
	if summary == nil {
		return ""
	}
	line := fmt.Sprintf(summaryLineFormat, summary.Files, summary.Errors, summary.TotalSize)
	if summary.Tokens > 0 {
		line += fmt.Sprintf(tokensSuffix, summary.Tokens)
		if summary.Model != "" {
			line += fmt.Sprintf(modelSuffix, summary.Model)
		}
	}
	return line
}

// ChangeReport is the payload describing a comparison against a prior snapshot.
type ChangeReport struct {
	XMLName     xml.Name       `json:"-" xml:"changes"`
	Changed     bool           `json:"changed" xml:"changed,attr"`
	Fingerprint string         `json:"fingerprint" xml:"fingerprint,attr"`
	Changes     []types.Change `json:"changes" xml:"change"`
	Tree        *types.Node    `json:"tree,omitempty" xml:"-"`
}

// WriteChanges renders a change report.
func WriteChanges(writer io.Writer, report ChangeReport, format string) error {
	switch format {
	case types.FormatRaw:
		if !report.Changed {
			_, writeError := fmt.Fprintln(writer, noChangesLine)
			return writeError
		}
		if len(report.Changes) == 0 {
			_, writeError := fmt.Fprintln(writer, reorderedLine)
			return writeError
		}
		for _, change := range report.Changes {
			marker := addedMarker
			if change.Kind == types.ChangeRemoved {
				marker = removedMarker
			}
			if _, writeError := fmt.Fprintf(writer, changeLineFormat, marker, change.Path, change.Type); writeError != nil {
				return writeError
			}
		}
		return nil
	case types.FormatJSON:
		if report.Changes == nil {
			report.Changes = []types.Change{}
		}
		return writeJSON(writer, report)
	case types.FormatXML:
		return writeXML(writer, report)
	default:
		return fmt.Errorf(errorUnsupportedFormat, format)
	}
}

func writeJSON(writer io.Writer, payload interface{}) error {
	encoded, encodeError := json.MarshalIndent(payload, indentPrefix, indentSpacer)
	if encodeError != nil {
		return encodeError
	}
	_, writeError := fmt.Fprintln(writer, string(encoded))
	return writeError
}

func writeXML(writer io.Writer, payload interface{}) error {
	encoded, encodeError := xml.MarshalIndent(payload, indentPrefix, indentSpacer)
	if encodeError != nil {
		return encodeError
	}
	_, writeError := fmt.Fprintln(writer, xmlHeader+string(encoded))
	return writeError
}
