// Package config loads repoview settings from global and local YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/utils"
)

const (
	// DefaultServerAddress matches the port the browser front-end expects.
	DefaultServerAddress = "127.0.0.1:5000"
	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultMaxRequestBytes caps HTTP request bodies, including previous trees sent to /changes.
	DefaultMaxRequestBytes = 64 << 20
	// DefaultWorkers bounds concurrent reads during aggregation.
	DefaultWorkers = 8
	// DefaultWatchInterval is the re-scan period of the watch command.
	DefaultWatchInterval = 10 * time.Second
	// DefaultTokenModel selects the tokenizer used for token estimates.
	DefaultTokenModel = "gpt-4o"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds settings for every command.
type ApplicationConfiguration struct {
	Server    ServerConfiguration    `mapstructure:"server"`
	Snapshot  SnapshotConfiguration  `mapstructure:"snapshot"`
	Aggregate AggregateConfiguration `mapstructure:"aggregate"`
	Watch     WatchConfiguration     `mapstructure:"watch"`
}

// ServerConfiguration configures the HTTP boundary.
type ServerConfiguration struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBytes int64         `mapstructure:"max_request_bytes"`
}

// SnapshotConfiguration configures tree building.
type SnapshotConfiguration struct {
	Format    string   `mapstructure:"format"`
	Exclude   []string `mapstructure:"exclude"`
	Gitignore *bool    `mapstructure:"gitignore"`
}

// AggregateConfiguration configures content aggregation.
type AggregateConfiguration struct {
	Format  string             `mapstructure:"format"`
	Workers *int               `mapstructure:"workers"`
	Copy    *bool              `mapstructure:"copy"`
	Summary *bool              `mapstructure:"summary"`
	Tokens  TokenConfiguration `mapstructure:"tokens"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// WatchConfiguration configures the polling watcher.
type WatchConfiguration struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Defaults returns the built-in configuration every loaded file is merged onto.
func Defaults() ApplicationConfiguration {
	workers := DefaultWorkers
	disabled := false
	return ApplicationConfiguration{
		Server: ServerConfiguration{
			Address:         DefaultServerAddress,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxRequestBytes: DefaultMaxRequestBytes,
		},
		Snapshot: SnapshotConfiguration{Format: types.FormatRaw, Gitignore: cloneBool(&disabled)},
		Aggregate: AggregateConfiguration{
			Format:  types.FormatRaw,
			Workers: &workers,
			Copy:    &disabled,
			Summary: cloneBool(&disabled),
			Tokens:  TokenConfiguration{Enabled: cloneBool(&disabled), Model: DefaultTokenModel},
		},
		Watch: WatchConfiguration{Interval: DefaultWatchInterval},
	}
}

// LoadApplicationConfiguration loads configuration from global and local files.
// Values from the local (or explicit) file override the global file, which
// overrides Defaults.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	merged := Defaults()

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath, false)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	localConfig, loadErr := loadConfigurationFromPath(localPath, options.ExplicitFilePath != "")
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	merged.Snapshot.Exclude = utils.DeduplicatePatterns(merged.Snapshot.Exclude)
	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath == "" {
		return filepath.Join(workingDirectory, utils.ConfigFileName)
	}
	if filepath.IsAbs(explicitPath) {
		return explicitPath
	}
	return filepath.Join(workingDirectory, explicitPath)
}

func loadConfigurationFromPath(path string, required bool) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
// Zero values in override leave the receiver's values untouched.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if override.Server.Address != "" {
		result.Server.Address = override.Server.Address
	}
	if override.Server.ShutdownTimeout > 0 {
		result.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	if override.Server.MaxRequestBytes > 0 {
		result.Server.MaxRequestBytes = override.Server.MaxRequestBytes
	}
	if override.Snapshot.Format != "" {
		result.Snapshot.Format = override.Snapshot.Format
	}
	if len(override.Snapshot.Exclude) > 0 {
		result.Snapshot.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Snapshot.Exclude)...)
	}
	if override.Snapshot.Gitignore != nil {
		result.Snapshot.Gitignore = cloneBool(override.Snapshot.Gitignore)
	}
	result.Aggregate = result.Aggregate.merge(override.Aggregate)
	if override.Watch.Interval > 0 {
		result.Watch.Interval = override.Watch.Interval
	}
	return result
}

func (config AggregateConfiguration) merge(override AggregateConfiguration) AggregateConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Workers != nil {
		result.Workers = cloneInt(override.Workers)
	}
	if override.Copy != nil {
		result.Copy = cloneBool(override.Copy)
	}
	if override.Summary != nil {
		result.Summary = cloneBool(override.Summary)
	}
	if override.Tokens.Enabled != nil {
		result.Tokens.Enabled = cloneBool(override.Tokens.Enabled)
	}
	if override.Tokens.Model != "" {
		result.Tokens.Model = override.Tokens.Model
	}
	return result
}

// Validate reports settings no command can run with.
func (config ApplicationConfiguration) Validate() error {
	if config.Aggregate.Workers != nil && *config.Aggregate.Workers < 1 {
		return fmt.Errorf("aggregate.workers must be positive, got %d", *config.Aggregate.Workers)
	}
	for _, format := range []string{config.Snapshot.Format, config.Aggregate.Format} {
		switch format {
		case "", types.FormatRaw, types.FormatJSON, types.FormatXML:
		default:
			return fmt.Errorf("unsupported format %q", format)
		}
	}
	return nil
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
