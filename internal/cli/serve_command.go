package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/services/api"
)

const (
	serveUse              = "serve"
	serveShortDescription = "serve snapshot and aggregation over HTTP"
	serveLongDescription  = `Start the JSON-over-HTTP server used by the browser front-end.
POST /list_files returns a folder tree, POST /get_files_content returns combined file contents,
and POST /changes compares a folder against a previous tree or fingerprint.`
	serveUsageExample = `  repoview serve --address 127.0.0.1:5000`

	addressFlagDescription = "listen address"
	serverListeningFormat  = "repoview listening on http://%s"
)

func createServeCommand(environment *commandEnvironment) *cobra.Command {
	var address string

	serveCommand := &cobra.Command{
		Use:     serveUse,
		Short:   serveShortDescription,
		Long:    serveLongDescription,
		Example: serveUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := environment.loadConfiguration()
			if configErr != nil {
				return configErr
			}
			if command.Flags().Changed(addressFlagName) {
				configuration.Server.Address = address
			}
			builder, builderErr := environment.newBuilder(configuration.Snapshot, nil)
			if builderErr != nil {
				return builderErr
			}
			aggregator, aggregatorErr := environment.newAggregator(configuration.Aggregate)
			if aggregatorErr != nil {
				return aggregatorErr
			}

			serverConfig := api.NewConfig(builder, aggregator)
			serverConfig.Address = configuration.Server.Address
			serverConfig.ShutdownTimeout = configuration.Server.ShutdownTimeout
			serverConfig.MaxRequestBytes = configuration.Server.MaxRequestBytes
			serverConfig.Logger = environment.logger()
			server := api.NewServer(serverConfig)

			writer := command.OutOrStdout()
			return server.Run(command.Context(), func(boundAddress string) {
				if writeErr := writeLine(writer, serverListeningFormat, boundAddress); writeErr != nil {
					environment.logger().Warn("write listening address", zap.Error(writeErr))
				}
			})
		},
	}
	serveCommand.Flags().StringVar(&address, addressFlagName, "", addressFlagDescription)
	return serveCommand
}
