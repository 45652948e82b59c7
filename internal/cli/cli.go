// Package cli provides the repoview command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/repoview/internal/aggregate"
	"github.com/temirov/repoview/internal/config"
	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/services/clipboard"
	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/tokenizer"
	"github.com/temirov/repoview/internal/utils"
)

const (
	configFlagName         = "config"
	logLevelFlagName       = "log-level"
	versionFlagName        = "version"
	formatFlagName         = "format"
	exclusionFlagName      = "e"
	gitignoreFlagName      = "gitignore"
	tokensFlagName         = "tokens"
	modelFlagName          = "model"
	copyFlagName           = "copy"
	summaryFlagName        = "summary"
	workersFlagName        = "workers"
	addressFlagName        = "address"
	previousFlagName       = "previous"
	intervalFlagName       = "interval"
	globalFlagName         = "global"
	forceFlagName          = "force"
	versionTemplate        = "repoview version: %s\n"
	rootUse                = "repoview"
	rootShortDescription   = "repoview command line interface"
	rootLongDescription    = `repoview snapshots directory trees, detects structural changes between
snapshots, and concatenates selected files into one text artifact.
Run "repoview serve" to expose the same operations over HTTP for the browser front-end.`
	configFlagDescription  = "path to a configuration file replacing ./.repoview.yaml"
	logLevelDescription    = "log level (debug, info, warn, error)"
	versionFlagDescription = "display application version"
	formatFlagDescription  = "output format (raw, json, xml)"

	invalidFormatMessage      = "Invalid format value '%s'"
	errorLoadConfiguration    = "load configuration: %w"
	errorInvalidConfiguration = "invalid configuration: %w"
	errorCreateBuilder        = "create snapshot builder: %w"
	errorCreateTokenizer      = "create tokenizer: %w"
	errorLogLevel             = "invalid --log-level %q: %w"
	errorCreateLogger         = "create logger: %w"
)

// Dependencies carries the collaborators commands use. Zero values are
// replaced with production implementations.
type Dependencies struct {
	Logger           *zap.Logger
	LoggerFactory    func(zapcore.Level) (*zap.Logger, error)
	Copier           clipboard.Copier
	CounterFactory   func(tokenizer.Config) (tokenizer.Counter, string, error)
	WorkingDirectory string
}

func (dependencies Dependencies) withDefaults() Dependencies {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Copier == nil {
		dependencies.Copier = clipboard.SystemCopier{}
	}
	if dependencies.LoggerFactory == nil {
		dependencies.LoggerFactory = utils.NewLeveledLogger
	}
	if dependencies.CounterFactory == nil {
		dependencies.CounterFactory = tokenizer.NewCounter
	}
	return dependencies
}

// Execute runs the repoview application with the process arguments.
func Execute(ctx context.Context, logger *zap.Logger) error {
	rootCommand := NewRootCommand(Dependencies{Logger: logger})
	return ExecuteWithArguments(ctx, rootCommand, nil)
}

// ExecuteWithArguments runs rootCommand with arguments, or with the process
// arguments when arguments is nil.
func ExecuteWithArguments(ctx context.Context, rootCommand *cobra.Command, arguments []string) error {
	if arguments == nil {
		arguments = os.Args[1:]
	}
	rootCommand.SetArgs(foldSwitchArguments(rootCommand, arguments))
	return rootCommand.ExecuteContext(ctx)
}

// NewRootCommand builds the root Cobra command with every subcommand attached.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	resolved := dependencies.withDefaults()
	var showVersion bool
	var configPath string
	var logLevel string
	environment := &commandEnvironment{dependencies: resolved, configPath: &configPath}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if !command.Flags().Changed(logLevelFlagName) {
				return nil
			}
			return environment.applyLogLevel(logLevel)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				_, err := fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				return err
			}
			return command.Help()
		},
	}
	rootCommand.Flags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().StringVar(&logLevel, logLevelFlagName, zapcore.InfoLevel.String(), logLevelDescription)

	rootCommand.AddCommand(
		createServeCommand(environment),
		createSnapshotCommand(environment),
		createAggregateCommand(environment),
		createChangesCommand(environment),
		createWatchCommand(environment),
		createInitCommand(environment),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// commandEnvironment is shared by all subcommands of one root command.
type commandEnvironment struct {
	dependencies Dependencies
	configPath   *string
}

func (environment *commandEnvironment) logger() *zap.Logger {
	return environment.dependencies.Logger
}

// applyLogLevel replaces the logger with one built at the requested level.
func (environment *commandEnvironment) applyLogLevel(levelText string) error {
	level, parseErr := zapcore.ParseLevel(levelText)
	if parseErr != nil {
		return fmt.Errorf(errorLogLevel, levelText, parseErr)
	}
	logger, loggerErr := environment.dependencies.LoggerFactory(level)
	if loggerErr != nil {
		return fmt.Errorf(errorCreateLogger, loggerErr)
	}
	environment.dependencies.Logger = logger
	return nil
}

// loadConfiguration reads configuration files and validates the result.
func (environment *commandEnvironment) loadConfiguration() (config.ApplicationConfiguration, error) {
	loaded, loadErr := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: environment.dependencies.WorkingDirectory,
		ExplicitFilePath: *environment.configPath,
	})
	if loadErr != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(errorLoadConfiguration, loadErr)
	}
	if validateErr := loaded.Validate(); validateErr != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(errorInvalidConfiguration, validateErr)
	}
	return loaded, nil
}

// newBuilder merges extra exclusion patterns into the configured ones.
func (environment *commandEnvironment) newBuilder(settings config.SnapshotConfiguration, extraExclude []string) (*snapshot.Builder, error) {
	exclude := append(append([]string{}, settings.Exclude...), extraExclude...)
	useGitignore := settings.Gitignore != nil && *settings.Gitignore
	builder, builderErr := snapshot.NewBuilder(utils.DeduplicatePatterns(exclude), environment.logger(), snapshot.WithGitignore(useGitignore))
	if builderErr != nil {
		return nil, fmt.Errorf(errorCreateBuilder, builderErr)
	}
	return builder, nil
}

// newAggregator builds an aggregator from resolved aggregate settings.
func (environment *commandEnvironment) newAggregator(settings config.AggregateConfiguration) (*aggregate.Aggregator, error) {
	options := aggregate.Options{
		Logger:         environment.logger(),
		IncludeSummary: settings.Summary != nil && *settings.Summary,
	}
	if settings.Workers != nil {
		options.Workers = *settings.Workers
	}
	if settings.Tokens.Enabled != nil && *settings.Tokens.Enabled {
		counter, model, counterErr := environment.dependencies.CounterFactory(tokenizer.Config{Model: settings.Tokens.Model})
		if counterErr != nil {
			return nil, fmt.Errorf(errorCreateTokenizer, counterErr)
		}
		options.TokenCounter = counter
		options.TokenModel = model
	}
	return aggregate.NewAggregator(options), nil
}

// resolveFormat lowercases the flag value when set, otherwise the configured format.
func resolveFormat(command *cobra.Command, flagValue string, configured string) (string, error) {
	format := configured
	if command.Flags().Changed(formatFlagName) || format == "" {
		format = flagValue
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if !output.IsSupportedFormat(format) {
		return "", fmt.Errorf(invalidFormatMessage, format)
	}
	return format, nil
}

func writeLine(writer io.Writer, format string, arguments ...interface{}) error {
	_, err := fmt.Fprintf(writer, format+"\n", arguments...)
	return err
}
