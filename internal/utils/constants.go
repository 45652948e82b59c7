package utils

const (
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".repoview.yaml"
	// GlobalConfigFileName is the name of the configuration file inside the global directory.
	GlobalConfigFileName = "config.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".repoview"

	// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
	LoggerInitializationFailedMessageFormat = "initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal command errors.
	ApplicationExecutionFailedMessage = "repoview failed"
)
