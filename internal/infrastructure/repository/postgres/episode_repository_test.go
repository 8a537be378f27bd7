package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

func newMockRepo(t *testing.T) (*EpisodeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEpisodeRepository(db), mock
}

func sampleEpisode() *domain.Episode {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &domain.Episode{
		ID:             "ep-1",
		SessionID:      "sess-1",
		Topic:          "photosynthesis",
		HostVoice:      "voice-a",
		CoHostVoice:    "voice-b",
		TranscriptPath: "transcripts/ep-1.txt",
		Status:         domain.EpisodePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateEpisode(t *testing.T) {
	repo, mock := newMockRepo(t)
	episode := sampleEpisode()

	mock.ExpectExec(`INSERT INTO episodes`).
		WithArgs(
			episode.ID, episode.SessionID, episode.Topic, episode.HostVoice, episode.CoHostVoice,
			episode.TranscriptPath, nil, string(domain.EpisodePending), "",
			episode.CreatedAt, episode.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), episode); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetEpisodeByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "topic", "host_voice", "co_host_voice",
		"transcript_path", "audio_url", "status", "error_message", "created_at", "updated_at",
	}).AddRow("ep-1", "sess-1", "photosynthesis", "voice-a", "voice-b",
		"transcripts/ep-1.txt", "https://cdn.example/ep.mp3", "completed", "", now, now)

	mock.ExpectQuery(`SELECT .+ FROM episodes`).WithArgs("ep-1").WillReturnRows(rows)

	episode, err := repo.GetByID(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if episode.Status != domain.EpisodeCompleted {
		t.Fatalf("unexpected status: %s", episode.Status)
	}
	if episode.AudioURL != "https://cdn.example/ep.mp3" {
		t.Fatalf("unexpected audio url: %q", episode.AudioURL)
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM episodes`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "topic", "host_voice", "co_host_voice",
			"transcript_path", "audio_url", "status", "error_message", "created_at", "updated_at",
		}))

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrEpisodeNotFound) {
		t.Fatalf("expected episode-not-found, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-1", string(domain.EpisodeFailed), "tts job failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "ep-1", domain.EpisodeFailed, "tts job failed"); err != nil {
		t.Fatalf("update status: %v", err)
	}
}

func TestUpdateStatusMissingEpisode(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("missing", string(domain.EpisodeProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.EpisodeProcessing, "")
	if !domain.IsKind(err, domain.ErrEpisodeNotFound) {
		t.Fatalf("expected episode-not-found, got %v", err)
	}
}

func TestAttachAudio(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-1", "https://cdn.example/ep.mp3", string(domain.EpisodeCompleted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AttachAudio(context.Background(), "ep-1", "https://cdn.example/ep.mp3"); err != nil {
		t.Fatalf("attach audio: %v", err)
	}
}
