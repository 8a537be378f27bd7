// Package google embeds text with the Generative Language embedding
// models over REST.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/infrastructure/remote"
	"github.com/vmalyshev/studycast/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	executor   *resilience.Executor
	httpClient *http.Client
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Embedder {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "embedding-001"
	}
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		executor:   executor,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	type embedRequest struct {
		Model   string  `json:"model"`
		Content content `json:"content"`
	}

	requests := make([]embedRequest, 0, len(texts))
	for _, text := range texts {
		requests = append(requests, embedRequest{
			Model:   "models/" + e.model,
			Content: content{Parts: []part{{Text: text}}},
		})
	}

	var response struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}

	call := func(ctx context.Context) error {
		return e.postJSON(ctx, fmt.Sprintf("/v1beta/models/%s:batchEmbedContents", e.model), map[string]any{
			"requests": requests,
		}, &response)
	}
	var err error
	if e.executor != nil {
		err = e.executor.Run(ctx, "embedding.batch", remote.Classify, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if remote.IsTemporary(err) {
			return nil, domain.WrapError(domain.ErrTemporary, "embed batch", err)
		}
		return nil, err
	}

	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d for %d texts", len(response.Embeddings), len(texts))
	}
	out := make([][]float32, len(response.Embeddings))
	for i, embedding := range response.Embeddings {
		out[i] = embedding.Values
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) postJSON(ctx context.Context, path string, request, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s%s?key=%s", e.baseURL, path, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &remote.HTTPStatusError{
			Operation:  "embed batch",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(detail)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode embed response: %w", err)
	}
	return nil
}
