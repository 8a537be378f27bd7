package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
	"github.com/vmalyshev/studycast/internal/core/rag"
)

const inlineTextName = "inline text"

// SessionService owns the in-memory session registry and implements the
// session lifecycle: creation with an initial ingest, incremental
// uploads, retrieval-augmented answering, model switching and teardown.
type SessionService struct {
	extractor  ports.Extractor
	catalog    ports.ModelCatalog
	embedder   ports.Embedder
	generators ports.GeneratorFactory
	vectors    ports.VectorIndexFactory
	newChunker func(chunkSize, chunkOverlap int) ports.Chunker
	topK       int
	logger     *slog.Logger

	registry *registry
}

type SessionConfig struct {
	Extractor  ports.Extractor
	Catalog    ports.ModelCatalog
	Embedder   ports.Embedder
	Generators ports.GeneratorFactory
	Vectors    ports.VectorIndexFactory
	NewChunker func(chunkSize, chunkOverlap int) ports.Chunker
	TopK       int
	Logger     *slog.Logger
}

func NewSessionService(cfg SessionConfig) *SessionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		extractor:  cfg.Extractor,
		catalog:    cfg.Catalog,
		embedder:   cfg.Embedder,
		generators: cfg.Generators,
		vectors:    cfg.Vectors,
		newChunker: cfg.NewChunker,
		topK:       cfg.TopK,
		logger:     logger,
		registry:   newRegistry(),
	}
}

// Create builds a session around the requested model and ingests the
// initial sources. A batch where every document failed still yields a
// live session with an empty manifest; queries against it answer with
// the no-documents sentinel.
func (s *SessionService) Create(ctx context.Context, sources []domain.UploadSource, modelID string, chunkSize, chunkOverlap int) (string, domain.IngestReport, error) {
	model, err := s.catalog.Lookup(modelID)
	if err != nil {
		return "", domain.IngestReport{}, err
	}
	sess := &session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		chunker:   s.newChunker(chunkSize, chunkOverlap),
	}
	sess.index = s.buildIndex(model, sess.chunker)

	records := s.resolveSources(ctx, sources)
	report, err := sess.index.Ingest(ctx, records)
	if err != nil && !domain.IsKind(err, domain.ErrNoValidDocuments) {
		destroyErr := sess.index.Destroy(ctx)
		if destroyErr != nil {
			s.logger.Warn("session_create_cleanup_failed", "error", destroyErr)
		}
		return "", report, err
	}
	sess.records = retainSuccessful(records, report)

	s.registry.add(sess)
	s.logger.Info("session_created",
		"session_id", sess.id,
		"model", modelID,
		"documents", len(report.Successful),
		"failed", len(report.Failed),
	)
	return sess.id, report, nil
}

// Ingest adds sources to an existing session. The index is append-only:
// re-uploading a document indexes its chunks again.
func (s *SessionService) Ingest(ctx context.Context, sessionID string, sources []domain.UploadSource) (domain.IngestReport, error) {
	sess, err := s.registry.get(sessionID)
	if err != nil {
		return domain.IngestReport{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	records := s.resolveSources(ctx, sources)
	report, err := sess.index.Ingest(ctx, records)
	if err != nil {
		return report, err
	}
	sess.records = append(sess.records, retainSuccessful(records, report)...)
	return report, nil
}

func (s *SessionService) Query(ctx context.Context, sessionID, question string) (string, error) {
	sess, err := s.registry.get(sessionID)
	if err != nil {
		return "", err
	}
	return sess.currentIndex().Query(ctx, question, s.topK)
}

// SwitchModel rebuilds the session's index under the new model by
// replaying the retained records, then swaps it in atomically. A hard
// replay failure leaves the old index untouched.
func (s *SessionService) SwitchModel(ctx context.Context, sessionID, modelID string) error {
	sess, err := s.registry.get(sessionID)
	if err != nil {
		return err
	}
	model, err := s.catalog.Lookup(modelID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.index.ModelID() == modelID {
		return nil
	}

	fresh := s.buildIndex(model, sess.chunker)
	if len(sess.records) > 0 {
		report, err := fresh.Ingest(ctx, sess.records)
		if err != nil {
			if destroyErr := fresh.Destroy(ctx); destroyErr != nil {
				s.logger.Warn("model_switch_cleanup_failed", "error", destroyErr)
			}
			return fmt.Errorf("replay documents into model %s: %w", modelID, err)
		}
		for _, failure := range report.Failed {
			s.logger.Warn("model_switch_replay_failed",
				"session_id", sessionID, "path", failure.Path, "error", failure.Error)
		}
	}

	old := sess.index
	sess.index = fresh
	if err := old.Destroy(ctx); err != nil {
		s.logger.Warn("old_index_destroy_failed", "session_id", sessionID, "error", err)
	}
	s.logger.Info("session_model_switched", "session_id", sessionID, "model", modelID)
	return nil
}

// Info renders the session's document manifest.
func (s *SessionService) Info(_ context.Context, sessionID string) (string, error) {
	sess, err := s.registry.get(sessionID)
	if err != nil {
		return "", err
	}
	return sess.currentIndex().ManifestDescription(), nil
}

func (s *SessionService) List(_ context.Context) []domain.SessionSummary {
	sessions := s.registry.snapshot()
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].createdAt.Equal(sessions[j].createdAt) {
			return sessions[i].createdAt.Before(sessions[j].createdAt)
		}
		return sessions[i].id < sessions[j].id
	})

	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		index := sess.currentIndex()
		out = append(out, domain.SessionSummary{
			ID:            sess.id,
			Title:         sessionTitle(sess.id),
			DocumentCount: index.DocumentCount(),
			Model:         index.ModelID(),
			CreatedAt:     sess.createdAt,
		})
	}
	return out
}

// Delete tears the session down. Deleting an unknown session is a
// no-op so that retries of a delete never fail.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	sess, ok := s.registry.remove(sessionID)
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.index.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy session index: %w", err)
	}
	s.logger.Info("session_deleted", "session_id", sessionID)
	return nil
}

// DocumentCount exposes the manifest size for collaborators that need
// to know whether a session has anything to talk about.
func (s *SessionService) DocumentCount(_ context.Context, sessionID string) (int, error) {
	sess, err := s.registry.get(sessionID)
	if err != nil {
		return 0, err
	}
	return sess.currentIndex().DocumentCount(), nil
}

func (s *SessionService) buildIndex(model domain.ModelInfo, chunker ports.Chunker) *rag.SessionIndex {
	sessionID := uuid.NewString()
	return rag.NewSessionIndex(
		model.ID,
		chunker,
		s.embedder,
		s.generators.ForModel(model),
		func() ports.VectorIndex { return s.vectors.NewIndex(sessionID) },
		s.logger,
	)
}

// resolveSources turns the upload batch into document records. Inline
// text needs no extraction; files and urls go through the extractor.
// Stored files keep their original filename as provenance.
func (s *SessionService) resolveSources(ctx context.Context, sources []domain.UploadSource) []domain.DocumentRecord {
	records := make([]domain.DocumentRecord, 0, len(sources))
	for _, src := range sources {
		switch src.Kind {
		case domain.SourceKindText:
			name := src.Name
			if name == "" {
				name = inlineTextName
			}
			records = append(records, domain.NewRecord(domain.SourceText, name, src.Value))
		case domain.SourceKindFile:
			record := s.extractor.Extract(ctx, src.Value)
			if src.Name != "" && record.Metadata != nil {
				record.Metadata["path"] = src.Name
			}
			records = append(records, record)
		case domain.SourceKindURL:
			records = append(records, s.extractor.Extract(ctx, src.Value))
		default:
			records = append(records, domain.FailedRecord(src.Value,
				fmt.Sprintf("unknown source kind %q", src.Kind)))
		}
	}
	return records
}

// retainSuccessful keeps the records that made it into the index, so a
// later model switch can replay exactly what the session holds.
func retainSuccessful(records []domain.DocumentRecord, report domain.IngestReport) []domain.DocumentRecord {
	failed := make(map[string]bool, len(report.Failed))
	for _, failure := range report.Failed {
		failed[failure.Path] = true
	}
	retained := make([]domain.DocumentRecord, 0, len(report.Successful))
	for _, record := range records {
		if record.Success && record.Content != "" && !failed[record.Path()] {
			retained = append(retained, record)
		}
	}
	return retained
}

func sessionTitle(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "Session " + short
}

func errIDNotFound(id string) error {
	return fmt.Errorf("id=%s", id)
}
