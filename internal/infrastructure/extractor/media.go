package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/infrastructure/remote"
)

const (
	defaultHFBaseURL       = "https://api-inference.huggingface.co"
	defaultTranscribeModel = "openai/whisper-large-v3"
	defaultCaptionModel    = "Salesforce/blip-image-captioning-large"
	defaultRequestsPerMin  = 30
)

// inferenceClient calls hosted inference endpoints for media that has
// no text of its own: speech is transcribed, images are captioned.
type inferenceClient struct {
	baseURL         string
	apiKey          string
	transcribeModel string
	captionModel    string
	limiter         *rate.Limiter
	httpClient      *http.Client
}

func newInferenceClient(cfg Config) *inferenceClient {
	if cfg.HFBaseURL == "" {
		cfg.HFBaseURL = defaultHFBaseURL
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = defaultTranscribeModel
	}
	if cfg.CaptionModel == "" {
		cfg.CaptionModel = defaultCaptionModel
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = defaultRequestsPerMin
	}
	return &inferenceClient{
		baseURL:         strings.TrimRight(cfg.HFBaseURL, "/"),
		apiKey:          cfg.HFAPIKey,
		transcribeModel: cfg.TranscribeModel,
		captionModel:    cfg.CaptionModel,
		limiter:         rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), 1),
		httpClient:      &http.Client{Timeout: 2 * time.Minute},
	}
}

func (e *Extractor) extractAudio(ctx context.Context, path string) domain.DocumentRecord {
	text, err := e.inference.transcribe(ctx, path)
	if err != nil {
		return domain.FailedRecord(path, fmt.Sprintf("audio transcription: %v", err))
	}
	return domain.NewRecord(domain.SourceAudio, path, text)
}

func (e *Extractor) extractVideo(ctx context.Context, path string) domain.DocumentRecord {
	text, err := e.inference.transcribe(ctx, path)
	if err != nil {
		return domain.FailedRecord(path, fmt.Sprintf("video transcription: %v", err))
	}
	return domain.NewRecord(domain.SourceVideo, path, "Video transcription:\n"+text)
}

func (e *Extractor) extractImage(ctx context.Context, path string) domain.DocumentRecord {
	caption, err := e.inference.caption(ctx, path)
	if err != nil {
		return domain.FailedRecord(path, fmt.Sprintf("image captioning: %v", err))
	}
	return domain.NewRecord(domain.SourceImage, path, "Image description: "+caption)
}

func (c *inferenceClient) transcribe(ctx context.Context, path string) (string, error) {
	body, err := c.infer(ctx, c.transcribeModel, path)
	if err != nil {
		return "", err
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return "", fmt.Errorf("empty transcription")
	}
	return result.Text, nil
}

func (c *inferenceClient) caption(ctx context.Context, path string) (string, error) {
	body, err := c.infer(ctx, c.captionModel, path)
	if err != nil {
		return "", err
	}
	var result []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode caption: %w", err)
	}
	if len(result) == 0 || strings.TrimSpace(result[0].GeneratedText) == "" {
		return "", fmt.Errorf("empty caption")
	}
	return result[0].GeneratedText, nil
}

// infer posts the raw file bytes to a hosted model. Hosted inference
// throttles aggressively, so requests are paced by the shared limiter
// and a cold model (503 with retryable hint) is waited out once.
func (c *inferenceClient) infer(ctx context.Context, model, path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}

	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := c.post(ctx, model, raw)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !remote.IsTemporary(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *inferenceClient) post(ctx context.Context, model string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/models/"+model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call inference: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &remote.HTTPStatusError{
			Operation:  "inference " + model,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
