package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	args string
	err  error
	req  openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{ToolCalls: []openai.ToolCall{{
			Function: openai.FunctionCall{Name: functionName, Arguments: s.args},
		}}},
	}}}, nil
}

func TestIdentify(t *testing.T) {
	stub := &stubCompleter{args: `{"emotion":"happiness"}`}
	s := NewService(stub, Config{}, nil)

	got, err := s.Identify(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "happiness", got)

	assert.Equal(t, openai.GPT4Turbo, stub.req.Model)
	assert.Equal(t, 300, stub.req.MaxTokens)
	part := stub.req.Messages[1].MultiContent[0]
	require.NotNil(t, part.ImageURL)
	assert.True(t, strings.HasPrefix(part.ImageURL.URL, "data:image/png;base64,"))
}

func TestIdentifyErrors(t *testing.T) {
	_, err := NewService(nil, Config{}, nil).Identify(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = NewService(&stubCompleter{args: `{"emotion":"boredom"}`}, Config{}, nil).Identify(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, ErrUnknownEmotion)

	boom := errors.New("rate limited")
	_, err = NewService(&stubCompleter{err: boom}, Config{}, nil).Identify(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, boom)
}

func TestIdentifyFunctionSchema(t *testing.T) {
	raw, ok := identifyFunction().Parameters.(json.RawMessage)
	require.True(t, ok)

	var schema struct {
		Properties struct {
			Emotion struct {
				Enum []string `json:"enum"`
			} `json:"emotion"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, Emotions, schema.Properties.Emotion.Enum)
}
