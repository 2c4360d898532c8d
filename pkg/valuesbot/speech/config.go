package speech

import (
	"fmt"
	"log/slog"
)

// Config configures voice input and output.
type Config struct {
	// TranscriptionModel is the speech-to-text model (default: whisper-1).
	TranscriptionModel string `yaml:"transcription_model"`

	// Language is an ISO-639-1 hint for transcription. Empty means detect.
	Language string `yaml:"language"`

	// VoiceReplies sends every text reply again as a voice note.
	VoiceReplies bool `yaml:"voice_replies"`

	// Provider selects synthesis: "openai", "edge" or "auto"
	// (OpenAI with Edge fallback). Default: "openai".
	Provider string `yaml:"provider"`

	// Model and Voice configure OpenAI synthesis (default: tts-1, nova).
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`

	// EdgeVoice is the Edge voice name (default: ru-RU-SvetlanaNeural).
	EdgeVoice string `yaml:"edge_voice"`
}

// DefaultConfig returns the default speech configuration.
func DefaultConfig() Config {
	return Config{
		VoiceReplies: true,
		Provider:     "openai",
	}
}

// NewProvider builds the synthesis provider selected by cfg.Provider.
func NewProvider(cfg Config, api SpeechAPI, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIProvider(api, cfg.Model, cfg.Voice), nil
	case "edge":
		return NewEdgeProvider("", cfg.EdgeVoice, logger), nil
	case "auto":
		return NewFallbackProvider(
			NewOpenAIProvider(api, cfg.Model, cfg.Voice),
			NewEdgeProvider("", cfg.EdgeVoice, logger),
			cfg.EdgeVoice, logger,
		), nil
	default:
		return nil, fmt.Errorf("speech: unknown provider %q", cfg.Provider)
	}
}
