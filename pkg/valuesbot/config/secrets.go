package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "valuesbot"

// Secret names accepted by `valuesbot config set-secret`.
const (
	SecretTelegramToken = "telegram_token"
	SecretOpenAIKey     = "openai_api_key"
	SecretAmplitudeKey  = "amplitude_key"
	SecretDBPassword    = "db_password"
	SecretGatewayToken  = "gateway_token"
)

// Environment variables consulted for each secret, in order.
var (
	envTelegramToken = []string{"VALUESBOT_TELEGRAM_TOKEN", "BOT_KEY"}
	envOpenAIKey     = []string{"VALUESBOT_OPENAI_API_KEY", "OPENAI_API_KEY", "OPENAI_KEY"}
	envAmplitudeKey  = []string{"VALUESBOT_AMPLITUDE_KEY", "AMPLITUDE_API_KEY"}
	envDBPassword    = []string{"VALUESBOT_DB_PASSWORD", "PG_PASSWD", "PGPASSWORD"}
	envGatewayToken  = []string{"VALUESBOT_GATEWAY_TOKEN"}
)

// KnownSecrets lists the secret names in display order.
func KnownSecrets() []string {
	return []string{SecretTelegramToken, SecretOpenAIKey, SecretAmplitudeKey, SecretDBPassword, SecretGatewayToken}
}

// StoreSecret saves a secret to the OS keyring.
func StoreSecret(name, value string) error {
	if !slices.Contains(KnownSecrets(), name) {
		return fmt.Errorf("unknown secret %q (known: %s)", name, strings.Join(KnownSecrets(), ", "))
	}
	if err := keyring.Set(keyringService, name, value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

// GetSecret returns a secret from the OS keyring, or "" when absent or
// when no keyring is available.
func GetSecret(name string) string {
	val, err := keyring.Get(keyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring. Deleting an absent
// secret is not an error.
func DeleteSecret(name string) error {
	err := keyring.Delete(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// resolveSecret picks the value for one secret: keyring first, then the
// environment, then whatever the file holds. Unexpanded ${VAR} references
// count as empty.
func resolveSecret(current, name string, envVars []string) (string, string) {
	if val := GetSecret(name); val != "" {
		return val, "keyring"
	}
	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			return val, "env"
		}
	}
	if IsEnvReference(current) {
		return "", ""
	}
	if current != "" {
		return current, "file"
	}
	return "", ""
}

// resolveSecrets fills every secret field of cfg.
func resolveSecrets(cfg *Config, logger *slog.Logger) {
	fields := []struct {
		name   string
		env    []string
		target *string
	}{
		{SecretTelegramToken, envTelegramToken, &cfg.Telegram.Token},
		{SecretOpenAIKey, envOpenAIKey, &cfg.OpenAI.APIKey},
		{SecretAmplitudeKey, envAmplitudeKey, &cfg.Analytics.AmplitudeKey},
		{SecretDBPassword, envDBPassword, &cfg.Database.PostgreSQL.Password},
		{SecretGatewayToken, envGatewayToken, &cfg.Gateway.AuthToken},
	}
	for _, f := range fields {
		val, source := resolveSecret(*f.target, f.name, f.env)
		*f.target = val
		if source != "" {
			logger.Debug("secret resolved", "name", f.name, "source", source)
		}
	}
}

// IsEnvReference checks if a string is an unexpanded environment variable
// reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// looksLikeRealKey heuristically checks if a string looks like a real API
// key rather than a placeholder.
func looksLikeRealKey(s string) bool {
	if IsEnvReference(s) {
		return false
	}
	return strings.HasPrefix(s, "sk-") || len(s) > 20
}

// AuditSecrets warns about secrets written in plaintext in the config file.
func AuditSecrets(path string, logger *slog.Logger) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(raw), "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		switch strings.TrimSpace(key) {
		case "token", "api_key", "amplitude_key", "password", "auth_token":
			if looksLikeRealKey(val) {
				logger.Warn("secret appears to be hardcoded in config",
					"field", strings.TrimSpace(key),
					"hint", "use a ${VAR} reference or `valuesbot config set-secret`")
			}
		}
	}
}

// ReadPassword reads a line from the terminal without echo. Piped input is
// read as-is.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	var buf [4096]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(string(buf[:n]), "\r\n"), nil
}
