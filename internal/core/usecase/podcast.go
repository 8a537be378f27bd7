package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
)

// Play.ai stock dialog voices, used when the caller does not pick any.
const (
	defaultHostVoice   = "s3://voice-cloning-zero-shot/baf1ed41-5d9b-4053-9f83-d1b617d9dc94/original/manifest.json"
	defaultCoHostVoice = "s3://voice-cloning-zero-shot/e040bd1b-f190-4bdb-83f0-75ef85b18f84/original/manifest.json"
)

// sessionContent is what the podcast pipeline needs from the session
// layer: grounded answers and a liveness check.
type sessionContent interface {
	Query(ctx context.Context, sessionID, question string) (string, error)
	DocumentCount(ctx context.Context, sessionID string) (int, error)
}

// PodcastService turns session content into a two-host episode. The
// transcript is written synchronously; audio rendering runs on the
// worker, driven by the job queue.
type PodcastService struct {
	sessions sessionContent
	scripts  ports.Generator
	store    ports.EpisodeStore
	queue    ports.JobQueue
	storage  ports.ObjectStorage
	synth    ports.SpeechSynthesizer
	logger   *slog.Logger
}

type PodcastConfig struct {
	Sessions    sessionContent
	Scripts     ports.Generator
	Store       ports.EpisodeStore
	Queue       ports.JobQueue
	Storage     ports.ObjectStorage
	Synthesizer ports.SpeechSynthesizer
	Logger      *slog.Logger
}

func NewPodcastService(cfg PodcastConfig) *PodcastService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PodcastService{
		sessions: cfg.Sessions,
		scripts:  cfg.Scripts,
		store:    cfg.Store,
		queue:    cfg.Queue,
		storage:  cfg.Storage,
		synth:    cfg.Synthesizer,
		logger:   logger,
	}
}

// RequestEpisode writes the dialogue transcript, persists a pending
// episode and queues the synthesis job. The transcript comes back to
// the caller immediately; audio arrives later via GetEpisode.
func (p *PodcastService) RequestEpisode(ctx context.Context, sessionID, topic, hostVoice, coHostVoice string) (*domain.Episode, string, error) {
	count, err := p.sessions.DocumentCount(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if count == 0 {
		return nil, "", domain.WrapError(domain.ErrNoValidDocuments, "request episode",
			fmt.Errorf("session %s has no documents", sessionID))
	}

	if strings.TrimSpace(topic) == "" {
		topic = "the uploaded material"
	}
	if hostVoice == "" {
		hostVoice = defaultHostVoice
	}
	if coHostVoice == "" {
		coHostVoice = defaultCoHostVoice
	}
	if err := validateVoice(hostVoice); err != nil {
		return nil, "", err
	}
	if err := validateVoice(coHostVoice); err != nil {
		return nil, "", err
	}

	research, err := p.sessions.Query(ctx, sessionID, researchQuestion(topic))
	if err != nil {
		return nil, "", err
	}

	raw, err := p.scripts.Generate(ctx, dialoguePrompt(topic, research))
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrTemporary, "write episode script", err)
	}
	transcript := stripThinking(raw)
	if transcript == "" || !strings.Contains(transcript, "Host 1:") {
		return nil, "", fmt.Errorf("script generation produced no dialogue")
	}

	now := time.Now().UTC()
	episode := &domain.Episode{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Topic:          topic,
		HostVoice:      hostVoice,
		CoHostVoice:    coHostVoice,
		TranscriptPath: "transcripts/" + uuid.NewString() + ".txt",
		Status:         domain.EpisodePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.storage.Save(ctx, episode.TranscriptPath, strings.NewReader(transcript)); err != nil {
		return nil, "", fmt.Errorf("store transcript: %w", err)
	}
	if err := p.store.Create(ctx, episode); err != nil {
		return nil, "", fmt.Errorf("persist episode: %w", err)
	}
	if err := p.queue.PublishEpisodeRequested(ctx, episode.ID); err != nil {
		if statusErr := p.store.UpdateStatus(ctx, episode.ID, domain.EpisodeFailed,
			fmt.Sprintf("queue episode: %v", err)); statusErr != nil {
			p.logger.Error("episode_status_update_failed", "episode_id", episode.ID, "error", statusErr)
		}
		return nil, "", fmt.Errorf("queue episode: %w", err)
	}

	p.logger.Info("episode_requested", "episode_id", episode.ID, "session_id", sessionID, "topic", topic)
	return episode, transcript, nil
}

func (p *PodcastService) GetEpisode(ctx context.Context, episodeID string) (*domain.Episode, error) {
	return p.store.GetByID(ctx, episodeID)
}

// ProcessEpisode renders the audio for one queued episode. Reprocessing
// a completed episode is a no-op so redelivered jobs stay harmless.
func (p *PodcastService) ProcessEpisode(ctx context.Context, episodeID string) error {
	episode, err := p.store.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}
	if episode.Status == domain.EpisodeCompleted {
		return nil
	}

	if err := p.store.UpdateStatus(ctx, episodeID, domain.EpisodeProcessing, ""); err != nil {
		return err
	}

	transcript, err := p.readTranscript(ctx, episode.TranscriptPath)
	if err != nil {
		return p.fail(ctx, episodeID, fmt.Errorf("read transcript: %w", err))
	}

	audioURL, err := p.synth.Synthesize(ctx, transcript, episode.HostVoice, episode.CoHostVoice)
	if err != nil {
		return p.fail(ctx, episodeID, fmt.Errorf("synthesize audio: %w", err))
	}

	if err := p.store.AttachAudio(ctx, episodeID, audioURL); err != nil {
		return err
	}
	p.logger.Info("episode_completed", "episode_id", episodeID, "audio_url", audioURL)
	return nil
}

func (p *PodcastService) readTranscript(ctx context.Context, key string) (string, error) {
	rc, err := p.storage.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (p *PodcastService) fail(ctx context.Context, episodeID string, cause error) error {
	if err := p.store.UpdateStatus(ctx, episodeID, domain.EpisodeFailed, cause.Error()); err != nil {
		p.logger.Error("episode_status_update_failed", "episode_id", episodeID, "error", err)
	}
	return cause
}

// Voices are manifest URLs on the synthesis provider's side; anything
// else fails there with an opaque 400, so reject it up front.
func validateVoice(voice string) error {
	if strings.HasPrefix(voice, "s3://") || strings.HasPrefix(voice, "https://") || strings.HasPrefix(voice, "http://") {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidInput, "request episode",
		fmt.Errorf("voice must be a manifest URL, got %q", voice))
}

func researchQuestion(topic string) string {
	return fmt.Sprintf(
		"Give a detailed, well-organized summary of everything the documents say about %s. "+
			"Include the key facts, definitions and examples.", topic)
}

func dialoguePrompt(topic, research string) string {
	return fmt.Sprintf(`Write an engaging podcast dialogue between exactly two hosts about %s.

Rules:
- Every line must start with "Host 1:" or "Host 2:", alternating naturally.
- Host 1 leads the conversation; Host 2 asks sharp questions and adds color.
- Ground every claim in the source material below. Do not invent facts.
- Keep it conversational and accessible. No markdown, no stage directions.

Source material:
%s

Dialogue:
`, topic, research)
}

// stripThinking drops <think>...</think> blocks that reasoning models
// emit before their actual output.
func stripThinking(text string) string {
	for {
		start := strings.Index(text, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "</think>")
		if end < 0 {
			text = text[:start]
			break
		}
		text = text[:start] + text[start+end+len("</think>"):]
	}
	return strings.TrimSpace(text)
}
