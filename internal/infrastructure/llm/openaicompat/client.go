// Package openaicompat talks to chat-completions compatible providers.
// Both catalog providers (groq and the OpenAI-compatible relay) expose
// the same wire surface behind different base URLs and keys.
package openaicompat

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
	"github.com/vmalyshev/studycast/internal/core/ports"
	"github.com/vmalyshev/studycast/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// Factory resolves a catalog model to a bound chat-completions client.
type Factory struct {
	Groq     ProviderConfig
	OpenAI   ProviderConfig
	Executor *resilience.Executor
}

func (f *Factory) ForModel(model domain.ModelInfo) ports.Generator {
	cfg := f.Groq
	if model.Provider == domain.ProviderOpenAI {
		cfg = f.OpenAI
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		modelID:    model.ID,
		executor:   f.Executor,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type Client struct {
	baseURL    string
	apiKey     string
	modelID    string
	executor   *resilience.Executor
	httpClient *http.Client
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model": c.modelID,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/chat/completions", request, &response)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Run(ctx, "llm.generate", ClassifyHTTPError, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporary("generate", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (c *Client) postJSON(ctx context.Context, path string, request, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  "chat completion",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(detail)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode chat response: %w", err)
	}
	return nil
}
