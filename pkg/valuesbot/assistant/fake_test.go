package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

// fakeAPI scripts the remote service. Runs returns the statuses handed out by
// CreateRun, RetrieveRun and SubmitToolOutputs, in order.
type fakeAPI struct {
	mu sync.Mutex

	runs     []openai.Run
	messages []openai.Message
	files    map[string]string
	batch    []openai.VectorStoreFileBatch
	failRun  error
	failFile map[string]error

	threadsCreated int
	appended       []appendedMessage
	runRequests    []openai.RunRequest
	submissions    []openai.SubmitToolOutputsRequest
	retrieves      int
	assistants     []openai.AssistantRequest
	modified       []openai.AssistantRequest
	vectorStores   []string
	uploads        []string
	events         []string
}

type appendedMessage struct {
	threadID string
	content  string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{files: make(map[string]string), failFile: make(map[string]error)}
}

func (f *fakeAPI) nextRun() openai.Run {
	if len(f.runs) == 0 {
		return openai.Run{ID: "run_1", Status: openai.RunStatusCompleted}
	}
	r := f.runs[0]
	f.runs = f.runs[1:]
	if r.ID == "" {
		r.ID = "run_1"
	}
	return r
}

func (f *fakeAPI) CreateAssistant(_ context.Context, req openai.AssistantRequest) (openai.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assistants = append(f.assistants, req)
	return openai.Assistant{ID: "asst_1"}, nil
}

func (f *fakeAPI) ModifyAssistant(_ context.Context, id string, req openai.AssistantRequest) (openai.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, req)
	return openai.Assistant{ID: id}, nil
}

func (f *fakeAPI) CreateThread(context.Context, openai.ThreadRequest) (openai.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadsCreated++
	f.events = append(f.events, "create_thread")
	return openai.Thread{ID: fmt.Sprintf("thread_%d", f.threadsCreated)}, nil
}

func (f *fakeAPI) CreateMessage(_ context.Context, threadID string, req openai.MessageRequest) (openai.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, appendedMessage{threadID: threadID, content: req.Content})
	f.events = append(f.events, "append")
	return openai.Message{ID: "msg_user", Role: req.Role}, nil
}

func (f *fakeAPI) ListMessage(context.Context, string, *int, *string, *string, *string, *string) (openai.MessagesList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return openai.MessagesList{Messages: f.messages}, nil
}

func (f *fakeAPI) CreateRun(_ context.Context, _ string, req openai.RunRequest) (openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRun != nil {
		return openai.Run{}, f.failRun
	}
	f.runRequests = append(f.runRequests, req)
	f.events = append(f.events, "create_run")
	return f.nextRun(), nil
}

func (f *fakeAPI) RetrieveRun(context.Context, string, string) (openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieves++
	f.events = append(f.events, "retrieve_run")
	return f.nextRun(), nil
}

func (f *fakeAPI) SubmitToolOutputs(_ context.Context, _, _ string, req openai.SubmitToolOutputsRequest) (openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, req)
	f.events = append(f.events, "submit")
	return f.nextRun(), nil
}

func (f *fakeAPI) CreateFile(_ context.Context, req openai.FileRequest) (openai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFile[req.FileName]; err != nil {
		return openai.File{}, err
	}
	f.uploads = append(f.uploads, req.FileName)
	id := fmt.Sprintf("file_%d", len(f.uploads))
	f.files[id] = req.FileName
	return openai.File{ID: id, FileName: req.FileName}, nil
}

func (f *fakeAPI) GetFile(_ context.Context, id string) (openai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.files[id]
	if !ok {
		return openai.File{}, errors.New("no such file")
	}
	return openai.File{ID: id, FileName: name}, nil
}

func (f *fakeAPI) CreateVectorStore(_ context.Context, req openai.VectorStoreRequest) (openai.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorStores = append(f.vectorStores, req.Name)
	return openai.VectorStore{ID: "vs_" + req.Name}, nil
}

func (f *fakeAPI) CreateVectorStoreFileBatch(_ context.Context, _ string, req openai.VectorStoreFileBatchRequest) (openai.VectorStoreFileBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextBatch(len(req.FileIDs)), nil
}

func (f *fakeAPI) RetrieveVectorStoreFileBatch(context.Context, string, string) (openai.VectorStoreFileBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextBatch(0), nil
}

// nextBatch pops a scripted batch state, or reports all n files completed.
func (f *fakeAPI) nextBatch(n int) openai.VectorStoreFileBatch {
	if len(f.batch) == 0 {
		return openai.VectorStoreFileBatch{
			ID:         "batch_1",
			Status:     "completed",
			FileCounts: openai.VectorStoreFileCount{Completed: n, Total: n},
		}
	}
	b := f.batch[0]
	f.batch = f.batch[1:]
	return b
}

func assistantMessage(text string, annotations ...any) openai.Message {
	return openai.Message{
		ID:   "msg_reply",
		Role: string(openai.ThreadMessageRoleAssistant),
		Content: []openai.MessageContent{{
			Type: "text",
			Text: &openai.MessageText{Value: text, Annotations: annotations},
		}},
	}
}

type stubValidator struct {
	accept bool
	calls  []string
}

func (v *stubValidator) Validate(_ context.Context, keyValues string) bool {
	v.calls = append(v.calls, keyValues)
	return v.accept
}

// memStore keeps one record per user and reports database.ErrNotFound on
// Update for unknown users, like the SQL repository.
type memStore struct {
	mu      sync.Mutex
	records map[int64]string
	saves   int
	updates int
	err     error
}

func newMemStore() *memStore { return &memStore{records: make(map[int64]string)} }

func (s *memStore) Save(_ context.Context, userID int64, keyValues string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	if _, ok := s.records[userID]; ok {
		return database.ErrAlreadyExists
	}
	s.records[userID] = keyValues
	return nil
}

func (s *memStore) Update(_ context.Context, userID int64, keyValues string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.err != nil {
		return s.err
	}
	if _, ok := s.records[userID]; !ok {
		return database.ErrNotFound
	}
	s.records[userID] = keyValues
	return nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.EventType
}

func (r *recordingTracker) Track(_ int64, event analytics.EventType, _ string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
