// Package commands defines all Cobra CLI commands for the ragapi binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/rag-api-go/internal/audit"
	"github.com/54b3r/rag-api-go/internal/config"
	"github.com/54b3r/rag-api-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragapi",
		Short: "ragapi — streaming question answering over a document corpus",
		Long: `ragapi answers natural language questions grounded in a pre-built
Qdrant vector index.

Each question is embedded, the nearest document chunks are retrieved,
a bounded context window is assembled from them, and the answer is
generated by an LLM and streamed back as it is produced.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragapi/config.yaml).
See 'ragapi --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Populate the environment from .env for local development.
			// Existing variables win; a missing file is not an error.
			_ = godotenv.Load()

			log := logging.Setup()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragapi/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewRequestsCmd(),
		NewVersionCmd(),
	)

	return root
}
