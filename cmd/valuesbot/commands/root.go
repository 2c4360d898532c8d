// Package commands implements the valuesbot CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "valuesbot",
		Short: "valuesbot - a Telegram bot that helps people discover their life values",
		Long: `valuesbot talks with Telegram users through an OpenAI assistant,
answers in text and voice, and stores the key values it discovers.

Examples:
  valuesbot serve
  valuesbot chat
  valuesbot sources --upload
  valuesbot migrate
  valuesbot config set-secret openai_api_key`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSourcesCmd(),
		newMigrateCmd(),
		newConfigCmd(),
		newHealthCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
