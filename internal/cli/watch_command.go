package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/types"
)

const (
	watchUse              = "watch <folder>"
	watchShortDescription = "poll a folder and report structural changes"
	watchLongDescription  = `Snapshot a folder on a fixed interval and print the added and removed
paths whenever the tree differs from the previous snapshot. Stops on interrupt.`
	watchUsageExample = `  repoview watch --interval 5s ./project`

	intervalFlagDescription = "time between snapshots"

	logWatchStarted   = "watching folder"
	logWatchChanged   = "folder structure changed"
	logWatchSnapshot  = "snapshot failed, keeping previous tree"
	logWatchStopped   = "watch stopped"
	errorWatchInitial = "initial snapshot: %w"
)

var errNonPositiveInterval = errors.New("watch interval must be positive")

func createWatchCommand(environment *commandEnvironment) *cobra.Command {
	var interval time.Duration
	var exclusionPatterns []string
	var useGitignore bool

	watchCommand := &cobra.Command{
		Use:     watchUse,
		Short:   watchShortDescription,
		Long:    watchLongDescription,
		Example: watchUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := environment.loadConfiguration()
			if configErr != nil {
				return configErr
			}
			if command.Flags().Changed(intervalFlagName) {
				configuration.Watch.Interval = interval
			}
			if configuration.Watch.Interval <= 0 {
				return errNonPositiveInterval
			}
			builder, builderErr := environment.newBuilder(snapshotSettings(command, configuration.Snapshot, useGitignore), exclusionPatterns)
			if builderErr != nil {
				return builderErr
			}

			ticker := time.NewTicker(configuration.Watch.Interval)
			defer ticker.Stop()
			return watchFolder(command.Context(), watchOptions{
				builder: builder,
				folder:  arguments[0],
				ticks:   ticker.C,
				writer:  command.OutOrStdout(),
				logger:  environment.logger(),
			})
		},
	}
	watchCommand.Flags().DurationVar(&interval, intervalFlagName, 0, intervalFlagDescription)
	addSnapshotFlags(watchCommand, &exclusionPatterns, &useGitignore)
	return watchCommand
}

type watchOptions struct {
	builder *snapshot.Builder
	folder  string
	ticks   <-chan time.Time
	writer  io.Writer
	logger  *zap.Logger
}

// watchFolder re-snapshots on every tick until ctx is done. A snapshot that
// fails after the first one is logged and skipped.
func watchFolder(ctx context.Context, options watchOptions) error {
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	previous, initialErr := options.builder.Snapshot(options.folder)
	if initialErr != nil {
		return fmt.Errorf(errorWatchInitial, initialErr)
	}
	options.logger.Info(logWatchStarted, zap.String("folder", options.folder), zap.String("fingerprint", snapshot.Fingerprint(previous)))

	for {
		select {
		case <-ctx.Done():
			options.logger.Info(logWatchStopped, zap.String("folder", options.folder))
			return nil
		case <-options.ticks:
		}

		current, snapshotErr := options.builder.Snapshot(options.folder)
		if snapshotErr != nil {
			options.logger.Warn(logWatchSnapshot, zap.String("folder", options.folder), zap.Error(snapshotErr))
			continue
		}
		report := compareSnapshots(previous, current)
		if !report.Changed {
			continue
		}
		options.logger.Info(logWatchChanged,
			zap.String("folder", options.folder),
			zap.Int("changes", len(report.Changes)),
			zap.String("fingerprint", report.Fingerprint),
		)
		if writeErr := output.WriteChanges(options.writer, report, types.FormatRaw); writeErr != nil {
			return writeErr
		}
		previous = current
	}
}
