// Package playai renders two-host podcast transcripts into audio via
// the Play.ai dialog API. Synthesis is asynchronous on their side: a
// job is created, then polled until it completes or fails.
package playai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/infrastructure/remote"
)

const (
	defaultBaseURL = "https://api.play.ai/api/v1"
	dialogModel    = "PlayDialog"
	hostTurnPrefix = "Host 1:"
	coHostPrefix   = "Host 2:"
)

type Config struct {
	BaseURL      string
	UserID       string
	SecretKey    string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type Client struct {
	cfg        Config
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Synthesize submits the transcript as a dialog job and polls until the
// rendered audio URL is available.
func (c *Client) Synthesize(ctx context.Context, transcript, hostVoice, coHostVoice string) (string, error) {
	jobID, err := c.createJob(ctx, transcript, hostVoice, coHostVoice)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "tts synthesize", err)
	}
	c.logger.Info("tts_job_created", "job_id", jobID)

	deadline, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	for {
		if err := c.limiter.Wait(deadline); err != nil {
			return "", domain.WrapError(domain.ErrTemporary, "tts poll", err)
		}
		status, audioURL, err := c.jobStatus(deadline, jobID)
		if err != nil {
			if remote.IsTemporary(err) {
				continue
			}
			return "", domain.WrapError(domain.ErrTemporary, "tts poll", err)
		}
		switch status {
		case "COMPLETED":
			return audioURL, nil
		case "FAILED":
			return "", fmt.Errorf("tts job %s failed", jobID)
		}
	}
}

func (c *Client) createJob(ctx context.Context, transcript, hostVoice, coHostVoice string) (string, error) {
	payload := map[string]any{
		"model":        dialogModel,
		"text":         transcript,
		"voice":        hostVoice,
		"voice2":       coHostVoice,
		"turnPrefix":   hostTurnPrefix,
		"turnPrefix2":  coHostPrefix,
		"outputFormat": "mp3",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode tts request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/tts/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &created); err != nil {
		return "", fmt.Errorf("decode tts response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("tts response missing job id")
	}
	return created.ID, nil
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (status, audioURL string, err error) {
	resp, err := c.do(ctx, http.MethodGet, "/tts/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	var job struct {
		Output struct {
			Status string `json:"status"`
			URL    string `json:"url"`
		} `json:"output"`
	}
	if err := json.Unmarshal(resp, &job); err != nil {
		return "", "", fmt.Errorf("decode tts status: %w", err)
	}
	return job.Output.Status, job.Output.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("X-USER-ID", c.cfg.UserID)
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tts api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &remote.HTTPStatusError{
			Operation:  "tts " + method + " " + path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}
