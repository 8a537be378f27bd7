// Package bootstrap wires configuration into the full object graph
// shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmalyshev/studycast/internal/catalog"
	"github.com/vmalyshev/studycast/internal/config"
	"github.com/vmalyshev/studycast/internal/core/ports"
	"github.com/vmalyshev/studycast/internal/core/usecase"
	"github.com/vmalyshev/studycast/internal/infrastructure/chunking"
	"github.com/vmalyshev/studycast/internal/infrastructure/embedding/google"
	"github.com/vmalyshev/studycast/internal/infrastructure/embedding/ollama"
	"github.com/vmalyshev/studycast/internal/infrastructure/extractor"
	"github.com/vmalyshev/studycast/internal/infrastructure/llm/openaicompat"
	"github.com/vmalyshev/studycast/internal/infrastructure/queue/nats"
	"github.com/vmalyshev/studycast/internal/infrastructure/repository/postgres"
	"github.com/vmalyshev/studycast/internal/infrastructure/resilience"
	"github.com/vmalyshev/studycast/internal/infrastructure/storage/localfs"
	"github.com/vmalyshev/studycast/internal/infrastructure/tts/playai"
	"github.com/vmalyshev/studycast/internal/infrastructure/vector/memory"
	"github.com/vmalyshev/studycast/internal/infrastructure/vector/qdrant"
)

var (
	_ ports.SessionOrchestrator = (*usecase.SessionService)(nil)
	_ ports.PodcastOrchestrator = (*usecase.PodcastService)(nil)
	_ ports.EpisodeProcessor    = (*usecase.PodcastService)(nil)
	_ ports.EpisodeStore        = (*postgres.EpisodeRepository)(nil)
	_ ports.JobQueue            = (*nats.Queue)(nil)
	_ ports.SpeechSynthesizer   = (*playai.Client)(nil)
	_ ports.Extractor           = (*extractor.Extractor)(nil)
)

type App struct {
	Config config.Config

	Catalog  ports.ModelCatalog
	Storage  ports.ObjectStorage
	Queue    *nats.Queue
	Sessions *usecase.SessionService
	Podcasts *usecase.PodcastService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	models, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load model catalog: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	episodes := postgres.NewEpisodeRepository(db)
	if err := episodes.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var embedder ports.Embedder
	switch cfg.EmbedBackend {
	case "ollama":
		embedder = ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	default:
		embedder = google.New(cfg.GoogleBaseURL, cfg.GoogleAPIKey, "", executor)
	}

	var vectors ports.VectorIndexFactory
	switch cfg.VectorBackend {
	case "qdrant":
		vectors = qdrant.Factory{BaseURL: cfg.QdrantURL, Prefix: cfg.QdrantPrefix}
	default:
		vectors = memory.Factory{}
	}

	generators := &openaicompat.Factory{
		Groq:     openaicompat.ProviderConfig{BaseURL: cfg.GroqBaseURL, APIKey: cfg.GroqAPIKey},
		OpenAI:   openaicompat.ProviderConfig{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIAPIKey},
		Executor: executor,
	}

	extract := extractor.New(extractor.Config{
		HFAPIKey:        cfg.HFAPIKey,
		HFBaseURL:       cfg.HFBaseURL,
		MaxFileSize:     cfg.MaxUploadSizeBytes,
		RequestsPerMin:  cfg.HFRequestsPerMin,
		TranscribeModel: cfg.HFTranscribeModel,
		CaptionModel:    cfg.HFCaptionModel,
	}, logger)

	sessions := usecase.NewSessionService(usecase.SessionConfig{
		Extractor:  extract,
		Catalog:    models,
		Embedder:   embedder,
		Generators: generators,
		Vectors:    vectors,
		NewChunker: func(chunkSize, chunkOverlap int) ports.Chunker {
			if chunkSize <= 0 {
				chunkSize = cfg.ChunkSize
			}
			if chunkOverlap <= 0 {
				chunkOverlap = cfg.ChunkOverlap
			}
			return chunking.NewSplitter(chunkSize, chunkOverlap)
		},
		TopK:   cfg.RAGTopK,
		Logger: logger,
	})

	scriptModel, err := models.Lookup(cfg.ScriptModel)
	if err != nil {
		return nil, fmt.Errorf("script model %q not in catalog: %w", cfg.ScriptModel, err)
	}

	synthesizer := playai.New(playai.Config{
		BaseURL:      cfg.PodcastBaseURL,
		UserID:       cfg.PodcastUserID,
		SecretKey:    cfg.PodcastAPIKey,
		PollInterval: time.Duration(cfg.PodcastPollSecs) * time.Second,
	}, logger)

	podcasts := usecase.NewPodcastService(usecase.PodcastConfig{
		Sessions:    sessions,
		Scripts:     generators.ForModel(scriptModel),
		Store:       episodes,
		Queue:       queue,
		Storage:     storage,
		Synthesizer: synthesizer,
		Logger:      logger,
	})

	return &App{
		Config:   cfg,
		Catalog:  models,
		Storage:  storage,
		Queue:    queue,
		Sessions: sessions,
		Podcasts: podcasts,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
