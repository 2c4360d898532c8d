package openaiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ErrNoToolCall is returned when a forced function call produced no call.
var ErrNoToolCall = errors.New("openai: response contains no tool call")

// ChatCompleter is the chat completion endpoint. *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ ChatCompleter = (*openai.Client)(nil)

// FunctionTool wraps a function definition as a chat tool.
func FunctionTool(fn openai.FunctionDefinition) openai.Tool {
	return openai.Tool{Type: openai.ToolTypeFunction, Function: &fn}
}

// CallFunction sends req with tool_choice forced to fn and decodes the
// arguments of the resulting call into out.
func CallFunction(ctx context.Context, client ChatCompleter, req openai.ChatCompletionRequest, fn openai.FunctionDefinition, out any) error {
	req.Tools = []openai.Tool{FunctionTool(fn)}
	req.ToolChoice = openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: fn.Name},
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return ErrNoToolCall
	}
	call := resp.Choices[0].Message.ToolCalls[0]
	if call.Function.Name != fn.Name {
		return fmt.Errorf("openai: expected call to %s, got %s", fn.Name, call.Function.Name)
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), out); err != nil {
		return fmt.Errorf("decoding %s arguments: %w", fn.Name, err)
	}
	return nil
}
