package cli

import (
	"github.com/spf13/cobra"

	"github.com/temirov/repoview/internal/config"
)

const (
	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = `Write the default configuration to ./.repoview.yaml, or to
~/.repoview/config.yaml with --global. Existing files are kept unless --force is given.`
	initUsageExample = `  repoview init --global`

	globalFlagDescription = "write the global configuration instead of the local one"
	forceFlagDescription  = "overwrite an existing configuration file"
	initWrittenFormat     = "configuration written to %s"
)

func createInitCommand(environment *commandEnvironment) *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:     initUse,
		Short:   initShortDescription,
		Long:    initLongDescription,
		Example: initUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, initErr := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: environment.dependencies.WorkingDirectory,
			})
			if initErr != nil {
				return initErr
			}
			return writeLine(command.OutOrStdout(), initWrittenFormat, writtenPath)
		},
	}
	addSwitch(initCommand.Flags(), &global, globalFlagName, globalFlagDescription)
	addSwitch(initCommand.Flags(), &force, forceFlagName, forceFlagDescription)
	return initCommand
}
