package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable references in config text:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//   - $VAR_NAME            - bare variable (upper case only)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads the config at path, or the first file FindConfigFile returns
// when path is empty. With no file at all, defaults plus environment and
// keyring secrets are used.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		loadEnvFiles()
		cfg := DefaultConfig()
		resolveSecrets(cfg, logger)
		logger.Debug("no config file found, using defaults")
		return cfg, nil
	}
	return LoadFile(path, logger)
}

// LoadFile reads and parses a YAML configuration file. It loads .env files
// first, expands environment references, then resolves secrets.
func LoadFile(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := Parse([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg, logger)
	resolveRelativePaths(cfg, path)
	checkFilePermissions(path, logger)

	return cfg, nil
}

// Parse parses YAML bytes over DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("mapping config: %w", err)
	}

	// A speech section without voice_replies keeps the default (on).
	if speechMap, ok := raw["speech"].(map[string]any); ok {
		if _, set := speechMap["voice_replies"]; !set {
			cfg.Speech.VoiceReplies = true
		}
	}

	return cfg, nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"valuesbot.yaml",
		"valuesbot.yml",
		"configs/valuesbot.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadEnvFiles loads .env files from the working directory. Existing
// environment variables are not overwritten.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR
// references. Unset plain references are kept as written so secret
// resolution can recognize them; an unset ${VAR:?error} is an error.
func expandEnvVars(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName, modifier, modValue, bareVar := sub[1], sub[2], sub[3], sub[4]

		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		switch modifier {
		case "-":
			return modValue
		case "?":
			if firstErr == nil {
				msg := modValue
				if msg == "" {
					msg = "required environment variable not set"
				}
				firstErr = fmt.Errorf("config error: %s - %s", varName, msg)
			}
			return ""
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// resolveRelativePaths makes file paths relative to the config file's
// directory, so the bot works from any working directory.
func resolveRelativePaths(cfg *Config, configPath string) {
	configDir := filepath.Dir(configPath)

	cfg.Database.SQLite.Path = resolvePathFromConfig(cfg.Database.SQLite.Path, configDir)
	for i := range cfg.Assistant.KnowledgeSources {
		src := &cfg.Assistant.KnowledgeSources[i]
		for j, p := range src.FilePaths {
			src.FilePaths[j] = resolvePathFromConfig(p, configDir)
		}
	}
}

// resolvePathFromConfig converts path to an absolute one, resolving it
// against configDir. Expands ~ to the home directory.
func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

// checkFilePermissions warns if the config file is readable by others.
func checkFilePermissions(path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		logger.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}
