package domain

import "time"

type EpisodeStatus string

const (
	EpisodePending    EpisodeStatus = "pending"
	EpisodeProcessing EpisodeStatus = "processing"
	EpisodeCompleted  EpisodeStatus = "completed"
	EpisodeFailed     EpisodeStatus = "failed"
)

// Episode is one podcast synthesis run for a session. The transcript is
// produced synchronously; audio is rendered by the worker and attached
// once the TTS job finishes.
type Episode struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	Topic          string        `json:"topic"`
	HostVoice      string        `json:"host_voice"`
	CoHostVoice    string        `json:"co_host_voice"`
	TranscriptPath string        `json:"transcript_path"`
	AudioURL       string        `json:"audio_url,omitempty"`
	Status         EpisodeStatus `json:"status"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
