package ports

import (
	"context"
	"io"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

// Extractor turns a source path or URL into plain text plus provenance
// metadata. Failures are reported inside the record, never as an error:
// one bad source must not abort the batch it arrived in.
type Extractor interface {
	Extract(ctx context.Context, source string) domain.DocumentRecord
}

// Embedder builds vectors for chunk batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits document text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex stores embedded chunks for one session and serves
// nearest-neighbor search. The first insert fixes the vector
// dimensionality; later entries must match it.
type VectorIndex interface {
	Insert(ctx context.Context, entries []domain.VectorEntry) error
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.RetrievedChunk, error)
	Destroy(ctx context.Context) error
}

// VectorIndexFactory creates the per-session index backing store.
type VectorIndexFactory interface {
	NewIndex(sessionID string) VectorIndex
}

// Generator produces text from a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFactory binds a catalog model to a provider client.
type GeneratorFactory interface {
	ForModel(model domain.ModelInfo) Generator
}

// ModelCatalog is the static model listing validated at startup.
type ModelCatalog interface {
	Lookup(id string) (domain.ModelInfo, error)
	List() []domain.ModelInfo
}

// SpeechSynthesizer renders a two-host transcript into audio and
// returns the URL of the finished file.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, transcript, hostVoice, coHostVoice string) (string, error)
}

// EpisodeStore persists podcast episode state.
type EpisodeStore interface {
	Create(ctx context.Context, episode *domain.Episode) error
	GetByID(ctx context.Context, id string) (*domain.Episode, error)
	UpdateStatus(ctx context.Context, id string, status domain.EpisodeStatus, errMessage string) error
	AttachAudio(ctx context.Context, id, audioURL string) error
}

// JobQueue carries episode synthesis jobs from the api to the worker.
type JobQueue interface {
	PublishEpisodeRequested(ctx context.Context, episodeID string) error
	SubscribeEpisodeRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ObjectStorage stores uploaded source files and transcripts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
	Remove(ctx context.Context, key string) error
}
