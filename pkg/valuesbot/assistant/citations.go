package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// annotation is the subset of a message text annotation we render.
// go-openai leaves annotations untyped, so they are re-decoded here.
type annotation struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	FileCitation *struct {
		FileID string `json:"file_id"`
	} `json:"file_citation,omitempty"`
	FilePath *struct {
		FileID string `json:"file_id"`
	} `json:"file_path,omitempty"`
}

func (a annotation) fileID() string {
	switch {
	case a.FileCitation != nil:
		return a.FileCitation.FileID
	case a.FilePath != nil:
		return a.FilePath.FileID
	}
	return ""
}

// renderText returns the message text with each citation marker replaced by
// "[Source: <filename>]".
func (o *Orchestrator) renderText(ctx context.Context, text *openai.MessageText) string {
	if text == nil {
		return ""
	}
	value := text.Value
	if len(text.Annotations) == 0 {
		return value
	}

	raw, err := json.Marshal(text.Annotations)
	if err != nil {
		o.logger.Warn("encoding annotations failed", "error", err)
		return value
	}
	var anns []annotation
	if err := json.Unmarshal(raw, &anns); err != nil {
		o.logger.Warn("decoding annotations failed", "error", err)
		return value
	}

	names := make(map[string]string)
	for _, ann := range anns {
		id := ann.fileID()
		if ann.Text == "" || id == "" {
			continue
		}
		name, ok := names[id]
		if !ok {
			name = o.fileName(ctx, id)
			names[id] = name
		}
		value = strings.Replace(value, ann.Text, "[Source: "+name+"]", 1)
	}
	return value
}

// fileName resolves a file id to its filename, falling back to the id.
func (o *Orchestrator) fileName(ctx context.Context, fileID string) string {
	file, err := o.api.GetFile(ctx, fileID)
	if err != nil || file.FileName == "" {
		o.logger.Warn("resolving cited file failed", "file_id", fileID, "error", err)
		return fileID
	}
	return file.FileName
}
