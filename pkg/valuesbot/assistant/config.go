package assistant

import "time"

// Config holds the fixed definition of the remote assistant.
type Config struct {
	// Name is the assistant name registered with the remote service.
	Name string `yaml:"name"`

	// Model is the model backing the assistant (e.g. "gpt-4-turbo").
	Model string `yaml:"model"`

	// Instructions is the assistant's system prompt.
	Instructions string `yaml:"instructions"`

	// RunInstructions are appended to every run. Instructions of activated
	// knowledge sources are appended to it at initialization.
	RunInstructions string `yaml:"run_instructions"`

	// PollInterval is the delay between run status checks (default: 500ms).
	PollInterval time.Duration `yaml:"poll_interval"`

	// KnowledgeSources are document collections attached to file search.
	KnowledgeSources []KnowledgeSource `yaml:"knowledge_sources"`
}

// KnowledgeSource is a named document collection the assistant may cite.
type KnowledgeSource struct {
	Name         string   `yaml:"name"`
	FilePaths    []string `yaml:"file_paths"`
	Instructions string   `yaml:"instructions"`
}

// DefaultInstructions is the base prompt used when none is configured.
const DefaultInstructions = `You are a warm, attentive conversation partner whose goal is to help the user discover their key life values.
Ask open questions, reflect what you hear and keep answers clear, concise and engaging.
When the user has clearly named the values that matter to them, call the save_values function with the list of values.
If the function reports that the values were rejected, gently ask the user to clarify them.`

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:         "Voice AI Assistant",
		Model:        "gpt-4-turbo",
		Instructions: DefaultInstructions,
		PollInterval: 500 * time.Millisecond,
	}
}

// Effective returns a copy with defaults applied for zero fields.
func (c Config) Effective() Config {
	out := c
	def := DefaultConfig()
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.Model == "" {
		out.Model = def.Model
	}
	if out.Instructions == "" {
		out.Instructions = def.Instructions
	}
	if out.PollInterval <= 0 {
		out.PollInterval = def.PollInterval
	}
	return out
}
