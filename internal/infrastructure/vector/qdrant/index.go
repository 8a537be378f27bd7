package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
)

// Index stores one session's chunks in a dedicated qdrant collection.
// The collection is created with Cosine distance on the first insert,
// which also fixes the vector size; it is dropped by Destroy together
// with the session.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu   sync.Mutex
	ensured    bool
	vectorSize int
}

// Factory names each session's collection after its id.
type Factory struct {
	BaseURL string
	Prefix  string
}

func (f Factory) NewIndex(sessionID string) ports.VectorIndex {
	prefix := f.Prefix
	if prefix == "" {
		prefix = "session"
	}
	return &Index{
		baseURL:    strings.TrimRight(f.BaseURL, "/"),
		collection: prefix + "_" + strings.ReplaceAll(sessionID, "-", ""),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (x *Index) Insert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	size := len(entries[0].Vector)
	for i, entry := range entries {
		if len(entry.Vector) != size {
			return domain.WrapError(domain.ErrDimensionMismatch, "qdrant upsert",
				fmt.Errorf("entry %d has dimension %d, batch has %d", i, len(entry.Vector), size))
		}
	}
	if err := x.ensureCollection(ctx, size); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(entries))
	for _, entry := range entries {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: entry.Vector,
			Payload: map[string]any{
				"text":     entry.Chunk.Text,
				"metadata": entry.Chunk.Metadata,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", x.baseURL, x.collection)
	return x.do(ctx, http.MethodPut, url, body, nil)
}

func (x *Index) Search(ctx context.Context, queryVector []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "qdrant search",
			fmt.Errorf("k must be positive, got %d", k))
	}

	x.ensureMu.Lock()
	ensured := x.ensured
	size := x.vectorSize
	x.ensureMu.Unlock()
	if !ensured {
		return nil, nil
	}
	if len(queryVector) != size {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "qdrant search",
			fmt.Errorf("query has dimension %d, collection has %d", len(queryVector), size))
	}

	body, err := json.Marshal(map[string]any{
		"query":        queryVector,
		"limit":        k,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	var response struct {
		Result struct {
			Points []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/query", x.baseURL, x.collection)
	if err := x.do(ctx, http.MethodPost, url, body, &response); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(response.Result.Points))
	for _, p := range response.Result.Points {
		text, _ := p.Payload["text"].(string)
		metadata, _ := p.Payload["metadata"].(map[string]any)
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{Text: text, Metadata: metadata},
			Score: p.Score,
		})
	}
	return out, nil
}

func (x *Index) Destroy(ctx context.Context) error {
	x.ensureMu.Lock()
	ensured := x.ensured
	x.ensured = false
	x.vectorSize = 0
	x.ensureMu.Unlock()
	if !ensured {
		return nil
	}

	url := fmt.Sprintf("%s/collections/%s", x.baseURL, x.collection)
	return x.do(ctx, http.MethodDelete, url, nil, nil)
}

func (x *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	x.ensureMu.Lock()
	defer x.ensureMu.Unlock()

	if x.ensured {
		if x.vectorSize != vectorSize {
			return domain.WrapError(domain.ErrDimensionMismatch, "qdrant ensure collection",
				fmt.Errorf("batch has dimension %d, collection has %d", vectorSize, x.vectorSize))
		}
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s", x.baseURL, x.collection)
	if err := x.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return err
	}

	x.ensured = true
	x.vectorSize = vectorSize
	return nil
}

func (x *Index) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant %s %s status: %s: %s", method, url, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}
