// Package aggregate reads a caller-selected list of files and joins them into
// one ordered text artifact. A failure on one path never affects the others.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repoview/internal/tokenizer"
	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/utils"
)

const (
	// DefaultWorkers bounds concurrent file reads when Options.Workers is unset.
	DefaultWorkers = 8

	sectionHeaderFormat    = "=== %s ===\n"
	sectionTerminator      = "\n\n"
	errorReadingFileFormat = "Error reading file: %v"

	logReadFailed       = "file read failed"
	logTokenCountFailed = "token count failed"
)

// Options configures an Aggregator. A TokenCounter implies IncludeSummary, and
// an empty TokenModel falls back to the counter's name.
type Options struct {
	Workers        int
	IncludeSummary bool
	TokenCounter   tokenizer.Counter
	TokenModel     string
	Logger         *zap.Logger
}

// Aggregator reads files into sections. It keeps no state between calls.
type Aggregator struct {
	workers        int
	includeSummary bool
	tokenCounter   tokenizer.Counter
	tokenModel     string
	logger         *zap.Logger
}

// NewAggregator applies defaults to options and returns an Aggregator.
func NewAggregator(options Options) *Aggregator {
	workers := options.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenModel := options.TokenModel
	if tokenModel == "" && options.TokenCounter != nil {
		tokenModel = options.TokenCounter.Name()
	}
	return &Aggregator{
		workers:        workers,
		includeSummary: options.IncludeSummary || options.TokenCounter != nil,
		tokenCounter:   options.TokenCounter,
		tokenModel:     tokenModel,
		logger:         logger,
	}
}

// Aggregate reads every path and returns one section per input entry, in input
// order, duplicates included. Reads run concurrently; a canceled context turns
// the remaining sections into error sections.
func (aggregator *Aggregator) Aggregate(ctx context.Context, paths []string) types.AggregationResult {
	sections := make([]types.Section, len(paths))

	var group errgroup.Group
	group.SetLimit(aggregator.workers)
	for pathIndex, path := range paths {
		pathIndex, path := pathIndex, path
		group.Go(func() error {
			sections[pathIndex] = aggregator.readSection(ctx, path)
			return nil
		})
	}
	_ = group.Wait()

	result := types.AggregationResult{Sections: sections}
	if aggregator.includeSummary {
		summary := Summarize(sections, aggregator.tokenModel)
		result.Summary = &summary
	}
	return result
}

func (aggregator *Aggregator) readSection(ctx context.Context, path string) types.Section {
	if contextError := ctx.Err(); contextError != nil {
		return failedSection(path, fmt.Sprintf(errorReadingFileFormat, contextError))
	}

	fileInfo, statError := os.Stat(path)
	if statError != nil || !fileInfo.Mode().IsRegular() {
		return failedSection(path, types.NotAFileMessage)
	}

	fileBytes, readError := os.ReadFile(path)
	if readError != nil {
		aggregator.logger.Debug(logReadFailed, zap.String("path", path), zap.Error(readError))
		return failedSection(path, fmt.Sprintf(errorReadingFileFormat, readError))
	}

	section := types.Section{
		Path:    path,
		Content: utils.DecodeText(fileBytes),
		Bytes:   int64(len(fileBytes)),
	}
	if aggregator.tokenCounter != nil {
		tokens, countError := tokenizer.CountText(aggregator.tokenCounter, section.Content)
		if countError != nil {
			aggregator.logger.Warn(logTokenCountFailed, zap.String("path", path), zap.Error(countError))
		} else {
			section.Tokens = tokens
		}
	}
	return section
}

func failedSection(path, message string) types.Section {
	return types.Section{Path: path, Error: message, Failed: true}
}

// Summarize totals the sections of a result.
func Summarize(sections []types.Section, model string) types.AggregationSummary {
	var summary types.AggregationSummary
	var totalBytes int64
	for _, section := range sections {
		if section.Failed {
			summary.Errors++
			continue
		}
		summary.Files++
		totalBytes += section.Bytes
		summary.Tokens += section.Tokens
	}
	summary.TotalSize = utils.FormatFileSize(totalBytes)
	if summary.Tokens > 0 {
		summary.Model = model
	}
	return summary
}

// Render returns the combined artifact: each section as a header line, its
// content or error message, and a blank line, in section order.
func Render(result types.AggregationResult) string {
	var builder strings.Builder
	_ = Write(&builder, result)
	return builder.String()
}

// Write streams the combined artifact to writer.
func Write(writer io.Writer, result types.AggregationResult) error {
	for _, section := range result.Sections {
		if _, writeError := fmt.Fprintf(writer, sectionHeaderFormat, section.Path); writeError != nil {
			return writeError
		}
		if _, writeError := io.WriteString(writer, section.Body()+sectionTerminator); writeError != nil {
			return writeError
		}
	}
	return nil
}
