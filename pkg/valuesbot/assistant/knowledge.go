package assistant

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const batchStatusInProgress = "in_progress"

// activeSource is a knowledge source whose files finished indexing.
type activeSource struct {
	KnowledgeSource
	vectorStoreID string
}

// activateSource creates a vector store for src, uploads its files and waits
// for indexing. It fails unless every submitted file completed.
func (o *Orchestrator) activateSource(ctx context.Context, src KnowledgeSource) (*activeSource, error) {
	if len(src.FilePaths) == 0 {
		return nil, fmt.Errorf("knowledge source %q has no files", src.Name)
	}

	store, err := o.api.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: src.Name})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	fileIDs := make([]string, 0, len(src.FilePaths))
	for _, path := range src.FilePaths {
		file, err := o.api.CreateFile(ctx, openai.FileRequest{
			FileName: filepath.Base(path),
			FilePath: path,
			Purpose:  string(openai.PurposeAssistants),
		})
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", path, err)
		}
		fileIDs = append(fileIDs, file.ID)
	}

	batch, err := o.api.CreateVectorStoreFileBatch(ctx, store.ID, openai.VectorStoreFileBatchRequest{FileIDs: fileIDs})
	if err != nil {
		return nil, fmt.Errorf("creating file batch: %w", err)
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for batch.Status == batchStatusInProgress {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		batch, err = o.api.RetrieveVectorStoreFileBatch(ctx, store.ID, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("polling file batch: %w", err)
		}
	}

	if batch.Status != "completed" || batch.FileCounts.Completed != len(fileIDs) {
		return nil, fmt.Errorf("file batch ended with status %q, %d of %d files completed",
			batch.Status, batch.FileCounts.Completed, len(fileIDs))
	}

	return &activeSource{KnowledgeSource: src, vectorStoreID: store.ID}, nil
}

// Sources describes the configured knowledge sources and their files.
func (o *Orchestrator) Sources() string {
	if len(o.cfg.KnowledgeSources) == 0 {
		return "No knowledge sources are configured."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge sources (%d):\n", len(o.cfg.KnowledgeSources))
	for i, src := range o.cfg.KnowledgeSources {
		names := make([]string, len(src.FilePaths))
		for j, p := range src.FilePaths {
			names[j] = filepath.Base(p)
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, src.Name, strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
