package domain

import "time"

// SessionSummary is the listing shape for one live session.
type SessionSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	DocumentCount int       `json:"document_count"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
}

type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindText SourceKind = "text"
	SourceKindURL  SourceKind = "url"
)

// UploadSource is one input unit of a create or upload batch. For files
// Value is a stored local path and Name the original filename; for urls
// Value is the url; for inline text Value is the text itself.
type UploadSource struct {
	Kind  SourceKind `json:"kind"`
	Value string     `json:"value"`
	Name  string     `json:"name,omitempty"`
}

// DocumentFailure reports one source that failed extraction or ingestion.
type DocumentFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IngestReport is the per-batch outcome of session creation or an
// incremental upload: each source succeeds or fails independently.
type IngestReport struct {
	Successful []map[string]any  `json:"successful_documents"`
	Failed     []DocumentFailure `json:"failed_documents"`
}
