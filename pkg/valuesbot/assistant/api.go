// Package assistant drives the hosted OpenAI assistant on behalf of chat users.
// It owns the per-user thread registry, the run/poll/tool-call cycle and the
// knowledge sources attached to the assistant's file search.
package assistant

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
)

// API is the subset of the OpenAI Assistants, Files and Vector Store endpoints
// used by the orchestrator. *openai.Client satisfies it.
type API interface {
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	ModifyAssistant(ctx context.Context, assistantID string, request openai.AssistantRequest) (openai.Assistant, error)

	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)

	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID string, runID string, request openai.SubmitToolOutputsRequest) (openai.Run, error)

	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	GetFile(ctx context.Context, fileID string) (openai.File, error)

	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	CreateVectorStoreFileBatch(ctx context.Context, vectorStoreID string, request openai.VectorStoreFileBatchRequest) (openai.VectorStoreFileBatch, error)
	RetrieveVectorStoreFileBatch(ctx context.Context, vectorStoreID string, batchID string) (openai.VectorStoreFileBatch, error)
}

// Validator judges whether a comma-joined list of key values is acceptable.
type Validator interface {
	Validate(ctx context.Context, keyValues string) bool
}

// ValuesStore persists a user's accepted key values.
// Update must return database.ErrNotFound when the user has no record yet.
type ValuesStore interface {
	Save(ctx context.Context, userID int64, keyValues string) error
	Update(ctx context.Context, userID int64, keyValues string) error
}

// EventTracker records analytics events without blocking the caller.
type EventTracker interface {
	Track(userID int64, event analytics.EventType, info string)
}

type nopTracker struct{}

func (nopTracker) Track(int64, analytics.EventType, string) {}

// Compile-time interface verification.
var _ API = (*openai.Client)(nil)
