// Package config loads the valuesbot configuration: a YAML file with
// ${VAR} expansion, .env files, and secrets from the OS keyring.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/assistant"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels/telegram"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/emotion"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/gateway"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/media"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/openaiapi"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/speech"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/validation"
)

// Config is the complete bot configuration.
type Config struct {
	Telegram   telegram.Config    `yaml:"telegram"`
	OpenAI     openaiapi.Config   `yaml:"openai"`
	Assistant  assistant.Config   `yaml:"assistant"`
	Validation validation.Config  `yaml:"validation"`
	Emotion    emotion.Config     `yaml:"emotion"`
	Speech     speech.Config      `yaml:"speech"`
	Media      media.Config       `yaml:"media"`
	Analytics  analytics.Config   `yaml:"analytics"`
	Database   database.HubConfig `yaml:"database"`
	Gateway    gateway.Config     `yaml:"gateway"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info).
	Level string `yaml:"level"`

	// Format is "text" or "json" (default: text).
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with every section at its defaults.
func DefaultConfig() *Config {
	return &Config{
		Assistant: assistant.DefaultConfig(),
		Speech:    speech.DefaultConfig(),
		Media:     media.DefaultConfig(),
		Analytics: analytics.DefaultConfig(),
		Database:  database.DefaultHubConfig(),
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Validate reports missing settings required to serve. needTelegram is
// false for commands that never talk to Telegram.
func (c *Config) Validate(needTelegram bool) error {
	var errs []error
	if needTelegram && c.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("telegram.token is not set (env %s or keyring %q)", envTelegramToken[0], SecretTelegramToken))
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("openai.api_key is not set (env %s or keyring %q)", envOpenAIKey[0], SecretOpenAIKey))
	}
	switch c.Database.Backend {
	case "", database.BackendSQLite, database.BackendPostgreSQL:
	default:
		errs = append(errs, fmt.Errorf("database.backend %q is not supported", c.Database.Backend))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
