// Package postgres persists podcast episode state so that requests
// survive api restarts and workers can pick jobs up independently.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

type EpisodeRepository struct {
	db *sql.DB
}

func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *EpisodeRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	host_voice TEXT NOT NULL,
	co_host_voice TEXT NOT NULL,
	transcript_path TEXT NOT NULL,
	audio_url TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_session_id ON episodes(session_id);
CREATE INDEX IF NOT EXISTS idx_episodes_status ON episodes(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *EpisodeRepository) Create(ctx context.Context, episode *domain.Episode) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO episodes (
	id, session_id, topic, host_voice, co_host_voice, transcript_path, audio_url, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		episode.ID, episode.SessionID, episode.Topic, episode.HostVoice, episode.CoHostVoice,
		episode.TranscriptPath, nullable(episode.AudioURL), string(episode.Status), episode.Error,
		episode.CreatedAt, episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*domain.Episode, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, session_id, topic, host_voice, co_host_voice, transcript_path, audio_url, status, error_message, created_at, updated_at
FROM episodes
WHERE id = $1
`, id)

	var (
		episode  domain.Episode
		audioURL sql.NullString
		status   string
	)
	err := row.Scan(
		&episode.ID, &episode.SessionID, &episode.Topic, &episode.HostVoice, &episode.CoHostVoice,
		&episode.TranscriptPath, &audioURL, &status, &episode.Error, &episode.CreatedAt, &episode.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEpisodeNotFound, "get episode", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	episode.AudioURL = audioURL.String
	episode.Status = domain.EpisodeStatus(status)
	return &episode, nil
}

func (r *EpisodeRepository) UpdateStatus(ctx context.Context, id string, status domain.EpisodeStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE episodes
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update episode status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrEpisodeNotFound, "update episode status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *EpisodeRepository) AttachAudio(ctx context.Context, id, audioURL string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE episodes
SET audio_url = $2, status = $3, error_message = '', updated_at = $4
WHERE id = $1
`, id, audioURL, string(domain.EpisodeCompleted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("attach episode audio: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach audio rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrEpisodeNotFound, "attach episode audio", fmt.Errorf("id=%s", id))
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
