package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
)

const (
	// Returned by Query when nothing was ever ingested. An empty
	// session is a valid state, not an error.
	noDocumentsAnswer = "No documents loaded yet."

	emptyManifestInfo = "No documents ingested yet."

	defaultTopK = 5
)

// SessionIndex is one session's retrieval index: a chunker
// configuration, an embedder binding, a lazily created vector index and
// the model used for answer synthesis.
//
// The vector index is append-only. Repeated ingestion of the same
// document duplicates its chunks; callers that replay documents (model
// switch) must do so against a fresh SessionIndex.
type SessionIndex struct {
	modelID   string
	chunker   ports.Chunker
	embedder  ports.Embedder
	generator ports.Generator
	newIndex  func() ports.VectorIndex
	logger    *slog.Logger

	mu       sync.RWMutex
	index    ports.VectorIndex
	manifest []map[string]any
}

func NewSessionIndex(
	modelID string,
	chunker ports.Chunker,
	embedder ports.Embedder,
	generator ports.Generator,
	newIndex func() ports.VectorIndex,
	logger *slog.Logger,
) *SessionIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionIndex{
		modelID:   modelID,
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		newIndex:  newIndex,
		logger:    logger,
	}
}

func (s *SessionIndex) ModelID() string {
	return s.modelID
}

// Ingest chunks, embeds and indexes every successful record with
// non-empty content; records that failed extraction go straight to the
// failed list. Embedding is one batch call per document and is
// all-or-nothing for that document: a failed batch puts the document in
// the failed list and the rest proceed. A batch with no usable record
// fails with ErrNoValidDocuments; an index write failure propagates as
// a hard error since the session's data may be inconsistent.
func (s *SessionIndex) Ingest(ctx context.Context, records []domain.DocumentRecord) (domain.IngestReport, error) {
	report := domain.IngestReport{
		Successful: []map[string]any{},
		Failed:     []domain.DocumentFailure{},
	}

	valid := make([]domain.DocumentRecord, 0, len(records))
	for _, record := range records {
		if record.Success && record.Content != "" {
			valid = append(valid, record)
			continue
		}
		message := record.ErrorMessage
		if message == "" {
			message = "no content extracted"
		}
		report.Failed = append(report.Failed, domain.DocumentFailure{
			Path:  record.Path(),
			Error: message,
		})
	}
	if len(valid) == 0 {
		return report, domain.WrapError(domain.ErrNoValidDocuments, "ingest documents",
			fmt.Errorf("%d records, none usable", len(records)))
	}

	chunksIngested := 0
	for _, record := range valid {
		windows := s.chunker.Split(record.Content)
		if len(windows) == 0 {
			// Whitespace-only content chunks to nothing; treat as a no-op.
			continue
		}

		vectors, err := s.embedder.Embed(ctx, windows)
		if err != nil {
			s.logger.Warn("embed_document_failed", "path", record.Path(), "error", err)
			report.Failed = append(report.Failed, domain.DocumentFailure{
				Path:  record.Path(),
				Error: fmt.Sprintf("embed document: %v", err),
			})
			continue
		}
		if len(vectors) != len(windows) {
			return report, domain.WrapError(domain.ErrInvalidInput, "embed document",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(windows)))
		}

		entries := make([]domain.VectorEntry, 0, len(windows))
		for i, window := range windows {
			entries = append(entries, domain.VectorEntry{
				Vector: vectors[i],
				Chunk: domain.Chunk{
					Text:     window,
					Metadata: record.Metadata,
				},
			})
		}

		if err := s.insert(ctx, entries); err != nil {
			return report, fmt.Errorf("index document %s: %w", record.Path(), err)
		}

		s.mu.Lock()
		s.manifest = append(s.manifest, record.Metadata)
		s.mu.Unlock()
		report.Successful = append(report.Successful, record.Metadata)
		chunksIngested += len(entries)
	}

	if len(report.Successful) == 0 && len(report.Failed) == 0 {
		return report, domain.WrapError(domain.ErrNoValidDocuments, "ingest documents",
			fmt.Errorf("all content chunked to nothing"))
	}

	s.logger.Info("documents_ingested",
		"model", s.modelID,
		"documents", len(report.Successful),
		"failed", len(report.Failed),
		"chunks", chunksIngested,
	)
	return report, nil
}

func (s *SessionIndex) insert(ctx context.Context, entries []domain.VectorEntry) error {
	s.mu.Lock()
	if s.index == nil {
		s.index = s.newIndex()
	}
	index := s.index
	s.mu.Unlock()

	return index.Insert(ctx, entries)
}

// Query answers a question from the indexed content. Collaborator
// failures come back as in-band answer text: the chat-style caller
// always expects an answer field, so retrieval errors are user-visible
// prose rather than transport errors.
func (s *SessionIndex) Query(ctx context.Context, question string, k int) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "query session", fmt.Errorf("empty question"))
	}
	if k <= 0 {
		k = defaultTopK
	}

	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index == nil {
		return noDocumentsAnswer, nil
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		s.logger.Error("query_embed_failed", "error", err)
		return fmt.Sprintf("Error: %v", err), nil
	}

	retrieved, err := index.Search(ctx, queryVector, k)
	if err != nil {
		s.logger.Error("query_search_failed", "error", err)
		return fmt.Sprintf("Error: %v", err), nil
	}

	answer, err := s.generator.Generate(ctx, answerPrompt(question, retrieved))
	if err != nil {
		s.logger.Error("query_generate_failed", "model", s.modelID, "error", err)
		return fmt.Sprintf("Error: %v", err), nil
	}
	return answer, nil
}

// ManifestDescription renders the append-only document manifest for
// human-readable session info.
func (s *SessionIndex) ManifestDescription() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.manifest) == 0 {
		return emptyManifestInfo
	}
	lines := make([]string, 0, len(s.manifest))
	for _, meta := range s.manifest {
		lines = append(lines, fmt.Sprintf("- %s (Type: %s)",
			metadataValue(meta, "path"), metadataValue(meta, "type")))
	}
	return strings.Join(lines, "\n")
}

func (s *SessionIndex) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.manifest)
}

// Destroy releases the vector index. The SessionIndex must not be used
// afterwards.
func (s *SessionIndex) Destroy(ctx context.Context) error {
	s.mu.Lock()
	index := s.index
	s.index = nil
	s.manifest = nil
	s.mu.Unlock()

	if index == nil {
		return nil
	}
	return index.Destroy(ctx)
}

func metadataValue(meta map[string]any, key string) string {
	v, ok := meta[key].(string)
	if !ok || v == "" {
		return "unknown"
	}
	return v
}
