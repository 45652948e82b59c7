package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/repoview/internal/aggregate"
	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/types"
)

const (
	aggregateUse              = "aggregate [files...]"
	aggregateAlias            = "a"
	aggregateShortDescription = "concatenate file contents (" + aggregateAlias + ")"
	aggregateLongDescription  = `Read the given files in order and print each under a "=== path ===" header.
Paths that are not readable regular files produce an inline error instead of failing the command.`
	aggregateUsageExample = `  # Concatenate two files and copy the result
  repoview aggregate --copy main.go go.mod

  # Include token estimates in JSON output
  repoview aggregate --tokens --format json README.md`

	tokensFlagDescription  = "include token counts"
	modelFlagDescription   = "tokenizer model to use for token counting"
	copyFlagDescription    = "copy the combined content to the system clipboard"
	summaryFlagDescription = "append a file count and size summary"
	workersFlagDescription = "maximum number of files read concurrently"

	errorCopyClipboard = "copy to clipboard: %w"
)

func createAggregateCommand(environment *commandEnvironment) *cobra.Command {
	var outputFormat string
	var tokensEnabled bool
	var tokenModel string
	var copyEnabled bool
	var summaryEnabled bool
	var workers int

	aggregateCommand := &cobra.Command{
		Use:     aggregateUse,
		Aliases: []string{aggregateAlias},
		Short:   aggregateShortDescription,
		Long:    aggregateLongDescription,
		Example: aggregateUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := environment.loadConfiguration()
			if configErr != nil {
				return configErr
			}
			format, formatErr := resolveFormat(command, outputFormat, configuration.Aggregate.Format)
			if formatErr != nil {
				return formatErr
			}

			settings := configuration.Aggregate
			flags := command.Flags()
			if flags.Changed(tokensFlagName) {
				settings.Tokens.Enabled = &tokensEnabled
			}
			if flags.Changed(modelFlagName) {
				settings.Tokens.Model = tokenModel
			}
			if flags.Changed(workersFlagName) {
				settings.Workers = &workers
			}
			if flags.Changed(copyFlagName) {
				settings.Copy = &copyEnabled
			}
			if flags.Changed(summaryFlagName) {
				settings.Summary = &summaryEnabled
			}

			aggregator, aggregatorErr := environment.newAggregator(settings)
			if aggregatorErr != nil {
				return aggregatorErr
			}
			result := aggregator.Aggregate(command.Context(), arguments)

			var rendered bytes.Buffer
			if writeErr := output.WriteAggregation(&rendered, result, format); writeErr != nil {
				return writeErr
			}
			if _, writeErr := io.Copy(command.OutOrStdout(), &rendered); writeErr != nil {
				return writeErr
			}
			if settings.Copy != nil && *settings.Copy {
				return copyAggregation(environment, result)
			}
			return nil
		},
	}
	aggregateCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	addSwitch(aggregateCommand.Flags(), &tokensEnabled, tokensFlagName, tokensFlagDescription)
	aggregateCommand.Flags().StringVar(&tokenModel, modelFlagName, "", modelFlagDescription)
	addSwitch(aggregateCommand.Flags(), &copyEnabled, copyFlagName, copyFlagDescription)
	addSwitch(aggregateCommand.Flags(), &summaryEnabled, summaryFlagName, summaryFlagDescription)
	aggregateCommand.Flags().IntVar(&workers, workersFlagName, aggregate.DefaultWorkers, workersFlagDescription)
	return aggregateCommand
}

// copyAggregation places the combined artifact, without summary, on the clipboard.
func copyAggregation(environment *commandEnvironment, result types.AggregationResult) error {
	if copyErr := environment.dependencies.Copier.Copy(aggregate.Render(result)); copyErr != nil {
		return fmt.Errorf(errorCopyClipboard, copyErr)
	}
	return nil
}
