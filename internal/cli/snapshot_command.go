package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/temirov/repoview/internal/config"
	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/types"
)

const (
	snapshotUse              = "snapshot <folder>"
	snapshotAlias            = "s"
	snapshotShortDescription = "print the directory tree of a folder (" + snapshotAlias + ")"
	snapshotLongDescription  = `Build an ordered snapshot of a folder. Entries starting with "." are skipped.
Use --format json to save a snapshot that "repoview changes --previous" can compare against.`
	snapshotUsageExample = `  # Save a snapshot for later comparison
  repoview snapshot --format json ./project > before.json

  # Hide build output
  repoview snapshot -e "**/dist" ./project`

	changesUse              = "changes <folder>"
	changesShortDescription = "compare a folder against a saved snapshot"
	changesLongDescription  = `Re-snapshot a folder and report whether its structure differs from a snapshot
previously saved with "repoview snapshot --format json".`
	changesUsageExample = `  repoview changes --previous before.json ./project`

	exclusionFlagDescription = "exclude entries matching a glob relative to the folder (repeatable)"
	gitignoreFlagDescription = "also skip entries matched by .gitignore files"
	previousFlagDescription  = "path to a JSON snapshot to compare against"

	errorReadPrevious  = "read previous snapshot %s: %w"
	errorParsePrevious = "parse previous snapshot %s: %w"
)

func createSnapshotCommand(environment *commandEnvironment) *cobra.Command {
	var exclusionPatterns []string
	var useGitignore bool
	var outputFormat string

	snapshotCommand := &cobra.Command{
		Use:     snapshotUse,
		Aliases: []string{snapshotAlias},
		Short:   snapshotShortDescription,
		Long:    snapshotLongDescription,
		Example: snapshotUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := environment.loadConfiguration()
			if configErr != nil {
				return configErr
			}
			format, formatErr := resolveFormat(command, outputFormat, configuration.Snapshot.Format)
			if formatErr != nil {
				return formatErr
			}
			builder, builderErr := environment.newBuilder(snapshotSettings(command, configuration.Snapshot, useGitignore), exclusionPatterns)
			if builderErr != nil {
				return builderErr
			}
			tree, snapshotErr := builder.Snapshot(arguments[0])
			if snapshotErr != nil {
				return snapshotErr
			}
			return output.WriteTree(command.OutOrStdout(), tree, format)
		},
	}
	addSnapshotFlags(snapshotCommand, &exclusionPatterns, &useGitignore)
	snapshotCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	return snapshotCommand
}

func createChangesCommand(environment *commandEnvironment) *cobra.Command {
	var exclusionPatterns []string
	var useGitignore bool
	var outputFormat string
	var previousPath string

	changesCommand := &cobra.Command{
		Use:     changesUse,
		Short:   changesShortDescription,
		Long:    changesLongDescription,
		Example: changesUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := environment.loadConfiguration()
			if configErr != nil {
				return configErr
			}
			format, formatErr := resolveFormat(command, outputFormat, configuration.Snapshot.Format)
			if formatErr != nil {
				return formatErr
			}
			previous, previousErr := readSnapshotFile(previousPath)
			if previousErr != nil {
				return previousErr
			}
			builder, builderErr := environment.newBuilder(snapshotSettings(command, configuration.Snapshot, useGitignore), exclusionPatterns)
			if builderErr != nil {
				return builderErr
			}
			current, snapshotErr := builder.Snapshot(arguments[0])
			if snapshotErr != nil {
				return snapshotErr
			}
			return output.WriteChanges(command.OutOrStdout(), compareSnapshots(previous, current), format)
		},
	}
	addSnapshotFlags(changesCommand, &exclusionPatterns, &useGitignore)
	changesCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	changesCommand.Flags().StringVar(&previousPath, previousFlagName, "", previousFlagDescription)
	_ = changesCommand.MarkFlagRequired(previousFlagName)
	return changesCommand
}

// addSnapshotFlags registers the tree filtering flags of every tree-building command.
func addSnapshotFlags(command *cobra.Command, exclusionPatterns *[]string, useGitignore *bool) {
	command.Flags().StringArrayVarP(exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	addSwitch(command.Flags(), useGitignore, gitignoreFlagName, gitignoreFlagDescription)
}

// snapshotSettings applies the --gitignore flag over the configured value.
func snapshotSettings(command *cobra.Command, settings config.SnapshotConfiguration, useGitignore bool) config.SnapshotConfiguration {
	if command.Flags().Changed(gitignoreFlagName) {
		settings.Gitignore = &useGitignore
	}
	return settings
}

func readSnapshotFile(path string) (*types.Node, error) {
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf(errorReadPrevious, path, readErr)
	}
	var tree types.Node
	if parseErr := json.Unmarshal(contents, &tree); parseErr != nil {
		return nil, fmt.Errorf(errorParsePrevious, path, parseErr)
	}
	return &tree, nil
}

// compareSnapshots builds the report shared by the changes and watch commands.
func compareSnapshots(previous, current *types.Node) output.ChangeReport {
	report := output.ChangeReport{
		Changed:     snapshot.Differs(previous, current),
		Fingerprint: snapshot.Fingerprint(current),
		Tree:        current,
	}
	if report.Changed {
		report.Changes = snapshot.Changes(previous, current)
	}
	return report
}
