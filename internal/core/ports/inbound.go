package ports

import (
	"context"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

// SessionOrchestrator is the inbound contract for session lifecycle and
// retrieval-augmented question answering.
type SessionOrchestrator interface {
	Create(ctx context.Context, sources []domain.UploadSource, modelID string, chunkSize, chunkOverlap int) (string, domain.IngestReport, error)
	Ingest(ctx context.Context, sessionID string, sources []domain.UploadSource) (domain.IngestReport, error)
	Query(ctx context.Context, sessionID, question string) (string, error)
	SwitchModel(ctx context.Context, sessionID, modelID string) error
	Info(ctx context.Context, sessionID string) (string, error)
	List(ctx context.Context) []domain.SessionSummary
	Delete(ctx context.Context, sessionID string) error
}

// PodcastOrchestrator is the inbound contract for podcast synthesis.
type PodcastOrchestrator interface {
	RequestEpisode(ctx context.Context, sessionID, topic, hostVoice, coHostVoice string) (*domain.Episode, string, error)
	GetEpisode(ctx context.Context, episodeID string) (*domain.Episode, error)
}

// EpisodeProcessor is the worker-side contract for rendering audio.
type EpisodeProcessor interface {
	ProcessEpisode(ctx context.Context, episodeID string) error
}
