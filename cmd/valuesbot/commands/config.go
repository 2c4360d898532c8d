package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/config"
)

// newConfigCmd creates the `valuesbot config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration and manage secrets",
		Long: `Inspect the effective configuration and manage the secrets kept in the
OS keyring.

Examples:
  valuesbot config show
  valuesbot config path
  valuesbot config set-secret telegram_token
  echo "$KEY" | valuesbot config set-secret openai_api_key
  valuesbot config delete-secret amplitude_key`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigPathCmd(),
		newConfigSetSecretCmd(),
		newConfigDeleteSecretCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, io.Discard)
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Telegram.Token = maskSecret(masked.Telegram.Token)
			masked.OpenAI.APIKey = maskSecret(masked.OpenAI.APIKey)
			masked.Analytics.AmplitudeKey = maskSecret(masked.Analytics.AmplitudeKey)
			masked.Database.PostgreSQL.Password = maskSecret(masked.Database.PostgreSQL.Password)
			masked.Gateway.AuthToken = maskSecret(masked.Gateway.AuthToken)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&masked); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file that would be loaded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			if path == "" {
				path = config.FindConfigFile()
			}
			if path == "" {
				return fmt.Errorf("no config file found, defaults and environment are used")
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigSetSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-secret <name>",
		Short: "Store a secret in the OS keyring",
		Long: fmt.Sprintf(`Store a secret in the OS keyring. The value is read from the terminal
without echo, or from stdin when piped.

Known secrets: %s`, strings.Join(config.KnownSecrets(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := config.ReadPassword(fmt.Sprintf("%s: ", args[0]))
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("empty value, nothing stored")
			}
			if err := config.StoreSecret(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored in keyring\n", args[0])
			return nil
		},
	}
}

func newConfigDeleteSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-secret <name>",
		Short: "Remove a secret from the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteSecret(args[0]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed from keyring\n", args[0])
			return nil
		},
	}
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
