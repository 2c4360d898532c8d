// Package emotion tags the facial expression in a user's photo so the
// conversation can react to it.
package emotion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sashabaranov/go-openai"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/openaiapi"
)

var (
	// ErrNotInitialized is returned when the service has no client.
	ErrNotInitialized = errors.New("emotion: not initialized")

	// ErrUnknownEmotion is returned when the model answers outside the
	// allowed set.
	ErrUnknownEmotion = errors.New("emotion: unknown emotion")
)

// Emotions is the closed set of expressions the model may choose from.
var Emotions = []string{
	"anger",
	"disgust",
	"fear",
	"happiness",
	"sadness",
	"surprise",
	"calm",
}

const functionName = "identify_emotions"

const systemPrompt = "Your objective is to identify the emotion of the individual " +
	"depicted in the image based on their facial expression."

func identifyFunction() openai.FunctionDefinition {
	enum, _ := json.Marshal(Emotions)
	return openai.FunctionDefinition{
		Name: functionName,
		Description: "Use this function whenever a photo with a detected human face is received. " +
			"The parameter is the identified emotional state of the face depicted in the image.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"emotion": {
					"type": "string",
					"enum": ` + string(enum) + `,
					"description": "The emotion from the enum that represents the facial expression most accurately."
				}
			},
			"required": ["emotion"]
		}`),
	}
}

// Config configures the vision model.
type Config struct {
	// Model must accept image input (default: gpt-4-turbo).
	Model string `yaml:"model"`

	// MaxTokens caps the completion (default: 300).
	MaxTokens int `yaml:"max_tokens"`
}

// Service identifies emotions with a vision model.
type Service struct {
	client openaiapi.ChatCompleter
	cfg    Config
	logger *slog.Logger
}

// NewService creates an emotion service.
func NewService(client openaiapi.ChatCompleter, cfg Config, logger *slog.Logger) *Service {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4Turbo
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cfg: cfg, logger: logger.With("component", "emotion")}
}

// Identify returns one of Emotions for the face in image.
func (s *Service) Identify(ctx context.Context, image []byte, mimeType string) (string, error) {
	if s.client == nil {
		return "", ErrNotInitialized
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	req := openai.ChatCompletionRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
				}},
			},
		},
	}

	var out struct {
		Emotion string `json:"emotion"`
	}
	if err := openaiapi.CallFunction(ctx, s.client, req, identifyFunction(), &out); err != nil {
		return "", fmt.Errorf("identifying emotion: %w", err)
	}
	if !slices.Contains(Emotions, out.Emotion) {
		return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, out.Emotion)
	}
	s.logger.Debug("emotion identified", "emotion", out.Emotion, "bytes", len(image))
	return out.Emotion, nil
}
