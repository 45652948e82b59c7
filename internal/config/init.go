package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/repoview/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `server:
  address: 127.0.0.1:5000
  shutdown_timeout: 5s
  max_request_bytes: 67108864
snapshot:
  format: raw
  exclude: []
  gitignore: false
aggregate:
  format: raw
  workers: 8
  copy: false
  summary: false
  tokens:
    enabled: false
    model: gpt-4o
watch:
  interval: 10s
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// DefaultConfigurationTemplate returns the YAML written by InitializeConfiguration.
func DefaultConfigurationTemplate() string {
	return defaultConfigurationTemplate
}

// InitializeConfiguration writes the default configuration to the requested
// target and returns the written path. Existing files are kept unless Force is set.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, resolveErr := resolveInitDestination(options)
	if resolveErr != nil {
		return "", resolveErr
	}

	if _, err := os.Stat(destinationPath); err == nil {
		if !options.Force {
			return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return "", fmt.Errorf("create configuration directory %s: %w", filepath.Dir(destinationPath), err)
	}
	if err := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}
	return destinationPath, nil
}

func resolveInitDestination(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", err)
		}
		return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName), nil
	default:
		return "", fmt.Errorf("unsupported init target %q", options.Target)
	}
}
