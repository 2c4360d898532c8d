// Package speech converts between voice notes and text: Whisper
// transcription for inbound voice and text-to-speech for replies.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
)

// MaxInputChars is the text-to-speech input limit. Longer text is truncated.
const MaxInputChars = 4096

// Provider converts text to audio.
type Provider interface {
	// Synthesize returns audio bytes and their MIME type (e.g. "audio/ogg").
	Synthesize(ctx context.Context, text, voice string) ([]byte, string, error)
}

// SpeechAPI is the speech endpoint of the OpenAI client.
type SpeechAPI interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIProvider synthesizes Opus voice notes with the OpenAI speech API.
type OpenAIProvider struct {
	api   SpeechAPI
	model openai.SpeechModel
	voice string
}

// NewOpenAIProvider creates an OpenAI provider. Empty model and voice
// default to tts-1 and nova.
func NewOpenAIProvider(api SpeechAPI, model, voice string) *OpenAIProvider {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	return &OpenAIProvider{api: api, model: openai.SpeechModel(model), voice: voice}
}

// Synthesize returns Ogg/Opus audio, the format Telegram plays as a voice note.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = p.voice
	}
	resp, err := p.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          truncate(text, MaxInputChars),
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return nil, "", fmt.Errorf("tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("tts: reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("tts: empty audio response")
	}
	return audio, "audio/ogg", nil
}

// FallbackProvider tries the primary provider and falls back to the
// secondary when it fails.
type FallbackProvider struct {
	primary        Provider
	secondary      Provider
	secondaryVoice string
	logger         *slog.Logger
}

// NewFallbackProvider creates a provider that tries primary first.
// secondaryVoice replaces the requested voice on fallback, since voice names
// rarely carry over between providers.
func NewFallbackProvider(primary, secondary Provider, secondaryVoice string, logger *slog.Logger) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{
		primary:        primary,
		secondary:      secondary,
		secondaryVoice: secondaryVoice,
		logger:         logger.With("component", "tts-fallback"),
	}
}

func (p *FallbackProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	audio, mime, err := p.primary.Synthesize(ctx, text, voice)
	if err == nil {
		return audio, mime, nil
	}
	if ctx.Err() != nil {
		return nil, "", err
	}
	p.logger.Warn("primary TTS failed, trying fallback", "error", err)

	v := p.secondaryVoice
	if v == "" {
		v = voice
	}
	return p.secondary.Synthesize(ctx, text, v)
}

// truncate cuts text to at most max runes, marking the cut with "...".
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max-3]) + "..."
}

var (
	_ Provider  = (*OpenAIProvider)(nil)
	_ Provider  = (*FallbackProvider)(nil)
	_ Provider  = (*EdgeProvider)(nil)
	_ SpeechAPI = (*openai.Client)(nil)
)
