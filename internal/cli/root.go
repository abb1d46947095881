package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "quiz-poll-bot",
		Short:        "Telegram quiz-poll bot with live scoring",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	startCmd := NewStartCmd(&configPath, &port)
	startCmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides config and PORT)")
	cmd.AddCommand(startCmd)
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewImportCmd(&configPath))
	cmd.AddCommand(NewSubjectsCmd(&configPath))
	return cmd
}
