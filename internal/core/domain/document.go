package domain

type SourceType string

const (
	SourceDocument     SourceType = "document"
	SourceText         SourceType = "text"
	SourcePresentation SourceType = "presentation"
	SourceAudio        SourceType = "audio"
	SourceVideo        SourceType = "video"
	SourceImage        SourceType = "image"
	SourceURL          SourceType = "url"
)

// DocumentRecord is the result of text extraction for one input unit.
// A failed record carries ErrorMessage and empty Content; it never
// aborts the batch it arrived in.
type DocumentRecord struct {
	Success      bool           `json:"success"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func NewRecord(sourceType SourceType, path, content string) DocumentRecord {
	return DocumentRecord{
		Success: true,
		Content: content,
		Metadata: map[string]any{
			"type": string(sourceType),
			"path": path,
		},
	}
}

func FailedRecord(path, errMessage string) DocumentRecord {
	return DocumentRecord{
		Metadata:     map[string]any{"path": path},
		ErrorMessage: errMessage,
	}
}

func (r DocumentRecord) Path() string {
	return metadataString(r.Metadata, "path")
}

func (r DocumentRecord) Type() string {
	return metadataString(r.Metadata, "type")
}

func metadataString(metadata map[string]any, key string) string {
	v, ok := metadata[key].(string)
	if !ok || v == "" {
		return "unknown"
	}
	return v
}
