// Package validation judges whether key values extracted by the assistant
// are specific and coherent enough to be stored.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/openaiapi"
)

// ErrNotInitialized is logged when the gate has no client.
var ErrNotInitialized = errors.New("validation: not initialized")

const functionName = "validate_value"

const systemPrompt = "Determine the correctness of the key life values identified by the user."

var validateFunction = openai.FunctionDefinition{
	Name: functionName,
	Description: "Use this function to accurately determine the correctness of the key life values identified by the user. " +
		"If multiple key values are present, they are delimited by commas. " +
		"The parameter is a boolean indicating whether the data is accurate (true) or not (false).",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"is_correct": {
				"type": "boolean",
				"description": "Conditions for true:\n- No nonsensical words: the values must not include meaningless or made-up words.\n- Mutual exclusivity: values that contradict each other, such as 'love' and 'hate', must not appear together.\n- Logical coherence: the values must fit together; 'freedom' should not come with values that require control, such as 'obedience'.\n- No overly general values: vague values such as 'good' or 'bad' give no insight into the user.\nConditions for false:\n- Anything that does not meet the conditions for true.\n- An empty string."
			}
		},
		"required": ["is_correct"]
	}`),
}

// Config configures the gate.
type Config struct {
	// Model used for validation (default: gpt-4-turbo).
	Model string `yaml:"model"`
}

// Gate validates key values with a forced function call. It fails closed:
// any error yields false.
type Gate struct {
	client openaiapi.ChatCompleter
	model  string
	logger *slog.Logger
}

// NewGate creates a gate. A nil client makes every validation fail.
func NewGate(client openaiapi.ChatCompleter, cfg Config, logger *slog.Logger) *Gate {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4Turbo
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "validation"),
	}
}

// Validate reports whether keyValues is an acceptable set of values.
func (g *Gate) Validate(ctx context.Context, keyValues string) bool {
	if g.client == nil {
		g.logger.Error("validation skipped", "error", ErrNotInitialized)
		return false
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: keyValues},
		},
	}
	var out struct {
		IsCorrect *bool `json:"is_correct"`
	}
	if err := openaiapi.CallFunction(ctx, g.client, req, validateFunction, &out); err != nil {
		g.logger.Warn("validation call failed", "error", err)
		return false
	}
	if out.IsCorrect == nil {
		g.logger.Warn("validation response missing is_correct")
		return false
	}
	g.logger.Debug("key values validated", "accepted", *out.IsCorrect)
	return *out.IsCorrect
}
