package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyTranscript is returned when the audio contained no speech.
var ErrEmptyTranscript = errors.New("stt: empty transcript")

// TranscriptionAPI is the transcription endpoint of the OpenAI client.
type TranscriptionAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

var _ TranscriptionAPI = (*openai.Client)(nil)

// Transcriber turns voice notes into text with Whisper.
type Transcriber struct {
	api      TranscriptionAPI
	model    string
	language string
}

// NewTranscriber creates a transcriber. An empty model uses whisper-1;
// an empty language lets the model detect it.
func NewTranscriber(api TranscriptionAPI, model, language string) *Transcriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{api: api, model: model, language: language}
}

// Transcribe returns the text spoken in audio. filename carries the
// extension the API uses to detect the container format.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: t.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("stt: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
