package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// SaveValuesTool is the function the assistant calls once the user's key
// values have been identified.
const SaveValuesTool = "save_values"

// Outputs sent back to the run for each tool call.
const (
	toolOutputAccepted    = "The key values were validated and saved. Thank the user and summarize the values back to them."
	toolOutputRejected    = "The key values were rejected as invalid, contradictory or too general. Ask the user to clarify them."
	toolOutputUnsupported = "This function is not available."
)

var saveValuesParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"key_values": {
			"type": "array",
			"items": {"type": "string"},
			"description": "The key life values identified by the user, one value per item."
		}
	},
	"required": ["key_values"]
}`)

func saveValuesTool() openai.AssistantTool {
	return openai.AssistantTool{
		Type: openai.AssistantToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: SaveValuesTool,
			Description: "Use this function to save the key life values identified by the user " +
				"once they have been clearly named during the conversation.",
			Parameters: saveValuesParameters,
		},
	}
}

type saveValuesArgs struct {
	KeyValues []string `json:"key_values"`
}

// parseSaveValuesArgs decodes the tool arguments and returns the values
// joined with ", ".
func parseSaveValuesArgs(raw string) (string, error) {
	var args saveValuesArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("decoding %s arguments: %w", SaveValuesTool, err)
	}
	return strings.Join(args.KeyValues, ", "), nil
}
