package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	// API is the remote assistant service. Required.
	API API

	// Validator judges extracted key values. Without it every extraction
	// is rejected.
	Validator Validator

	// Store persists accepted key values. Optional.
	Store ValuesStore

	// Tracker receives analytics events. Optional.
	Tracker EventTracker

	// Metrics receives Prometheus observations. Optional.
	Metrics *Metrics

	Logger *slog.Logger
}

// Orchestrator maps chat users to remote threads and runs the assistant on
// their behalf.
type Orchestrator struct {
	cfg       Config
	api       API
	validator Validator
	store     ValuesStore
	tracker   EventTracker
	metrics   *Metrics
	logger    *slog.Logger

	threads *ThreadRegistry

	// Set once by Initialize.
	mu              sync.RWMutex
	assistantID     string
	runInstructions string
	sources         []*activeSource
}

// New creates an orchestrator. Initialize must succeed before Request.
func New(cfg Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = nopTracker{}
	}
	return &Orchestrator{
		cfg:       cfg.Effective(),
		api:       deps.API,
		validator: deps.Validator,
		store:     deps.Store,
		tracker:   tracker,
		metrics:   deps.Metrics,
		logger:    logger.With("component", "assistant"),
		threads:   NewThreadRegistry(),
	}
}

// Initialize creates the remote assistant and activates the configured
// knowledge sources. A knowledge source that fails to activate is logged and
// skipped.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.api == nil {
		return ErrNotInitialized
	}

	req := openai.AssistantRequest{
		Model:        o.cfg.Model,
		Name:         &o.cfg.Name,
		Instructions: &o.cfg.Instructions,
		Tools:        []openai.AssistantTool{saveValuesTool()},
	}
	asst, err := o.api.CreateAssistant(ctx, req)
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	o.logger.Info("assistant created", "id", asst.ID, "model", o.cfg.Model)

	var (
		active       []*activeSource
		storeIDs     []string
		instructions []string
	)
	if o.cfg.RunInstructions != "" {
		instructions = append(instructions, o.cfg.RunInstructions)
	}
	for _, src := range o.cfg.KnowledgeSources {
		a, err := o.activateSource(ctx, src)
		if err != nil {
			o.logger.Error("knowledge source activation failed", "source", src.Name, "error", err)
			continue
		}
		active = append(active, a)
		storeIDs = append(storeIDs, a.vectorStoreID)
		if src.Instructions != "" {
			instructions = append(instructions, src.Instructions)
		}
		o.logger.Info("knowledge source activated", "source", src.Name, "files", len(src.FilePaths))
	}

	if len(storeIDs) > 0 {
		req.Tools = append(req.Tools, openai.AssistantTool{Type: openai.AssistantToolTypeFileSearch})
		req.ToolResources = &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{VectorStoreIDs: storeIDs},
		}
		if _, err := o.api.ModifyAssistant(ctx, asst.ID, req); err != nil {
			o.logger.Error("attaching knowledge sources failed", "error", err)
			active = nil
			instructions = instructions[:0]
			if o.cfg.RunInstructions != "" {
				instructions = append(instructions, o.cfg.RunInstructions)
			}
		}
	}

	o.mu.Lock()
	o.assistantID = asst.ID
	o.sources = active
	o.runInstructions = strings.Join(instructions, "\n")
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) state() (assistantID, runInstructions string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.assistantID, o.runInstructions
}

// RunInstructions returns the instructions appended to every run.
func (o *Orchestrator) RunInstructions() string {
	_, ri := o.state()
	return ri
}

// ActiveSources returns the names of the knowledge sources attached to the
// assistant.
func (o *Orchestrator) ActiveSources() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name
	}
	return names
}

// CreateThread opens a new remote thread for userID and binds it, replacing
// any previous binding.
func (o *Orchestrator) CreateThread(ctx context.Context, userID int64) (string, error) {
	if o.api == nil {
		return "", ErrNotInitialized
	}
	thread, err := o.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	o.threads.Set(userID, thread.ID)
	o.metrics.setThreads(o.threads.Len())
	o.logger.Debug("thread created", "user_id", userID, "thread_id", thread.ID)
	return thread.ID, nil
}

// ThreadID returns the thread bound to userID.
func (o *Orchestrator) ThreadID(userID int64) (string, bool) {
	return o.threads.Get(userID)
}

// ClearContext forgets userID's thread. The remote thread is left as is.
func (o *Orchestrator) ClearContext(userID int64) {
	if o.threads.Delete(userID) {
		o.logger.Debug("thread cleared", "user_id", userID)
	}
	o.metrics.setThreads(o.threads.Len())
}

// Request sends prompt as userID's next turn and returns the assistant reply.
// A user without a thread gets one first. At most one tool-call round trip
// is performed per request.
func (o *Orchestrator) Request(ctx context.Context, userID int64, prompt string) (string, error) {
	reply, err := o.request(ctx, userID, prompt)
	switch {
	case err == nil:
		o.metrics.observeRequest("ok")
	case errors.Is(err, ErrNotInitialized):
		o.metrics.observeRequest("not_initialized")
	default:
		var runErr *RunFailedError
		if errors.As(err, &runErr) {
			o.metrics.observeRequest("run_failed")
		} else {
			o.metrics.observeRequest("error")
		}
	}
	return reply, err
}

func (o *Orchestrator) request(ctx context.Context, userID int64, prompt string) (string, error) {
	assistantID, runInstructions := o.state()
	if o.api == nil || assistantID == "" {
		return "", ErrNotInitialized
	}

	threadID, ok := o.threads.Get(userID)
	if !ok {
		var err error
		if threadID, err = o.CreateThread(ctx, userID); err != nil {
			return "", err
		}
	}

	if _, err := o.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: prompt,
	}); err != nil {
		return "", fmt.Errorf("appending message: %w", err)
	}

	start := time.Now()
	run, err := o.api.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:            assistantID,
		AdditionalInstructions: runInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	if run, err = o.waitRun(ctx, threadID, run); err != nil {
		return "", err
	}

	if run.Status == openai.RunStatusRequiresAction {
		outputs := o.toolOutputs(ctx, userID, run)
		if len(outputs) == 0 {
			o.metrics.observeRun(string(run.Status), time.Since(start))
			return "", newRunFailedError(run)
		}
		if run, err = o.api.SubmitToolOutputs(ctx, threadID, run.ID, openai.SubmitToolOutputsRequest{
			ToolOutputs: outputs,
		}); err != nil {
			return "", fmt.Errorf("submitting tool outputs: %w", err)
		}
		if run, err = o.waitRun(ctx, threadID, run); err != nil {
			return "", err
		}
	}

	o.metrics.observeRun(string(run.Status), time.Since(start))
	if run.Status != openai.RunStatusCompleted {
		return "", newRunFailedError(run)
	}
	return o.latestReply(ctx, threadID)
}

func isPending(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return true
	}
	return false
}

// waitRun polls run until it leaves the queued/in-progress states. There is
// no deadline besides ctx.
func (o *Orchestrator) waitRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	if !isPending(run.Status) {
		return run, nil
	}
	runID := run.ID
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for isPending(run.Status) {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
		next, err := o.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return run, fmt.Errorf("polling run %s: %w", runID, err)
		}
		run = next
	}
	return run, nil
}

// toolOutputs executes the tool calls of a run that requires action and
// returns one output per call.
func (o *Orchestrator) toolOutputs(ctx context.Context, userID int64, run openai.Run) []openai.ToolOutput {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}
	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]openai.ToolOutput, 0, len(calls))
	for _, call := range calls {
		output := toolOutputUnsupported
		tool, result := "other", "unsupported"
		if call.Function.Name == SaveValuesTool {
			tool = SaveValuesTool
			output, result = toolOutputRejected, "rejected"
			keyValues, err := parseSaveValuesArgs(call.Function.Arguments)
			if err != nil {
				o.logger.Warn("invalid tool arguments", "tool", call.Function.Name, "error", err)
			} else if o.SaveValues(ctx, userID, keyValues) {
				output, result = toolOutputAccepted, "accepted"
			}
		} else {
			o.logger.Warn("assistant requested unknown tool", "tool", call.Function.Name)
		}
		o.metrics.observeToolCall(tool, result)
		outputs = append(outputs, openai.ToolOutput{ToolCallID: call.ID, Output: output})
	}
	return outputs
}

// latestReply returns the rendered text of the newest thread message, which
// must come from the assistant.
func (o *Orchestrator) latestReply(ctx context.Context, threadID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := o.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}
	if len(list.Messages) == 0 || list.Messages[0].Role != string(openai.ThreadMessageRoleAssistant) {
		return "", ErrNoAssistantMessage
	}

	var parts []string
	for _, c := range list.Messages[0].Content {
		if c.Text == nil {
			continue
		}
		parts = append(parts, o.renderText(ctx, c.Text))
	}
	return strings.Join(parts, "\n"), nil
}

// SaveValues validates keyValues and, when accepted, stores them for userID.
// Storage failures are logged and never change the result, which is the
// validation verdict.
func (o *Orchestrator) SaveValues(ctx context.Context, userID int64, keyValues string) bool {
	o.tracker.Track(userID, analytics.EventKeyValueRevealed, keyValues)

	if o.validator == nil {
		o.logger.Warn("no validator configured, rejecting key values", "user_id", userID)
		return false
	}
	accepted := o.validator.Validate(ctx, keyValues)
	if !accepted {
		o.logger.Info("key values rejected", "user_id", userID)
		return false
	}

	if o.store == nil {
		return true
	}
	err := o.store.Update(ctx, userID, keyValues)
	if errors.Is(err, database.ErrNotFound) {
		err = o.store.Save(ctx, userID, keyValues)
	}
	if err != nil {
		o.logger.Error("storing key values failed", "user_id", userID, "error", err)
	} else {
		o.logger.Info("key values stored", "user_id", userID)
	}
	return true
}
