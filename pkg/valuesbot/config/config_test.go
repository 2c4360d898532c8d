package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// clearSecretEnv blanks every environment variable a secret can come from.
func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, group := range [][]string{envTelegramToken, envOpenAIKey, envAmplitudeKey, envDBPassword, envGatewayToken} {
		for _, name := range group {
			t.Setenv(name, "")
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valuesbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VB_SET", "value")
	os.Unsetenv("VB_UNSET")

	tests := []struct {
		in   string
		want string
	}{
		{"a: ${VB_SET}", "a: value"},
		{"a: $VB_SET", "a: value"},
		{"a: ${VB_UNSET:-fallback}", "a: fallback"},
		{"a: ${VB_SET:-fallback}", "a: value"},
		{"a: ${VB_UNSET}", "a: ${VB_UNSET}"},
		{"a: $VB_UNSET", "a: $VB_UNSET"},
		{"price: 5$", "price: 5$"},
	}
	for _, tt := range tests {
		got, err := expandEnvVars(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := expandEnvVars("token: ${VB_UNSET:?set the bot token}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VB_UNSET - set the bot token")
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("assistant:\n  model: gpt-4o\nspeech:\n  voice: onyx\n"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Assistant.Model)
	assert.Equal(t, "Voice AI Assistant", cfg.Assistant.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Assistant.PollInterval)
	assert.True(t, cfg.Speech.VoiceReplies, "voice replies stay on when not set")
	assert.Equal(t, "onyx", cfg.Speech.Voice)
	assert.Equal(t, database.BackendSQLite, cfg.Database.Backend)
	assert.Equal(t, 4, cfg.Analytics.Workers)

	cfg, err = Parse([]byte("speech:\n  voice_replies: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Speech.VoiceReplies)

	_, err = Parse([]byte("assistant: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t)
	t.Setenv("OPENAI_KEY", "sk-from-env")
	t.Setenv("PG_HOST", "db.internal")

	path := writeConfig(t, `
telegram:
  token: ${BOT_KEY}
openai:
  api_key: ${OPENAI_KEY}
database:
  backend: postgresql
  postgresql:
    host: ${PG_HOST:-localhost}
    port: 5433
    password: plain-file-password
  sqlite:
    path: data/bot.db
assistant:
  knowledge_sources:
    - name: Values
      file_paths: [docs/values.docx]
      instructions: Cite the values guide.
`)

	cfg, err := LoadFile(path, discard)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "", cfg.Telegram.Token, "unexpanded reference is treated as unset")
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.PostgreSQL.Host)
	assert.Equal(t, 5433, cfg.Database.PostgreSQL.Port)
	assert.Equal(t, "plain-file-password", cfg.Database.PostgreSQL.Password)
	assert.Equal(t, filepath.Join(dir, "data/bot.db"), cfg.Database.SQLite.Path)
	require.Len(t, cfg.Assistant.KnowledgeSources, 1)
	assert.Equal(t, filepath.Join(dir, "docs/values.docx"), cfg.Assistant.KnowledgeSources[0].FilePaths[0])

	err = cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
	assert.NotContains(t, err.Error(), "openai.api_key")
	assert.NoError(t, cfg.Validate(false))
}

func TestSecretPrecedence(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t)

	path := writeConfig(t, "openai:\n  api_key: sk-file\ntelegram:\n  token: file-token\n")

	cfg, err := LoadFile(path, discard)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.OpenAI.APIKey)

	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err = LoadFile(path, discard)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)

	require.NoError(t, StoreSecret(SecretOpenAIKey, "sk-keyring"))
	t.Cleanup(func() { _ = DeleteSecret(SecretOpenAIKey) })

	cfg, err = LoadFile(path, discard)
	require.NoError(t, err)
	assert.Equal(t, "sk-keyring", cfg.OpenAI.APIKey)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
}

func TestStoreSecretRejectsUnknownName(t *testing.T) {
	keyring.MockInit()
	err := StoreSecret("nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretTelegramToken)

	assert.NoError(t, DeleteSecret(SecretAmplitudeKey), "deleting an absent secret")
}

func TestLoadFileMissingRequiredVar(t *testing.T) {
	os.Unsetenv("VB_REQUIRED_TOKEN")
	path := writeConfig(t, "telegram:\n  token: ${VB_REQUIRED_TOKEN:?bot token required}\n")

	_, err := LoadFile(path, discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot token required")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.Token = "t"
	cfg.OpenAI.APIKey = "k"
	require.NoError(t, cfg.Validate(true))

	cfg.Database.Backend = "mysql"
	cfg.Logging.Format = "xml"
	err := cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
	assert.Contains(t, err.Error(), "xml")
}

func TestResolvePathFromConfig(t *testing.T) {
	assert.Equal(t, "/abs/x.db", resolvePathFromConfig("/abs/x.db", "/etc/valuesbot"))
	assert.Equal(t, "/etc/valuesbot/x.db", resolvePathFromConfig("x.db", "/etc/valuesbot"))
	assert.Equal(t, "", resolvePathFromConfig("", "/etc/valuesbot"))
}
