package assistant

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrNotInitialized is returned when a request reaches the orchestrator
	// before Initialize succeeded or without a remote client.
	ErrNotInitialized = errors.New("assistant: not initialized")

	// ErrNoAssistantMessage is returned when a completed run leaves a thread
	// whose newest message was not written by the assistant.
	ErrNoAssistantMessage = errors.New("assistant: no assistant message found")
)

// RunFailedError reports a run that reached a terminal state other than
// "completed".
type RunFailedError struct {
	RunID  string
	Status openai.RunStatus

	// Code and Message mirror run.last_error when the service provided one.
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assistant: run %s ended with status %q: %s", e.RunID, e.Status, e.Message)
	}
	return fmt.Sprintf("assistant: run %s ended with status %q", e.RunID, e.Status)
}

func newRunFailedError(run openai.Run) *RunFailedError {
	err := &RunFailedError{RunID: run.ID, Status: run.Status}
	if run.LastError != nil {
		err.Code = string(run.LastError.Code)
		err.Message = run.LastError.Message
	}
	return err
}
