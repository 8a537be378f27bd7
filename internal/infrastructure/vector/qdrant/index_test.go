package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

func testEntry(text string, vector ...float32) domain.VectorEntry {
	return domain.VectorEntry{
		Vector: vector,
		Chunk:  domain.Chunk{Text: text, Metadata: map[string]any{"path": text, "type": "text"}},
	}
}

func TestInsertCreatesCollectionThenUpserts(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	index := Factory{BaseURL: server.URL, Prefix: "session"}.NewIndex("abc-123")
	err := index.Insert(context.Background(), []domain.VectorEntry{testEntry("a", 1, 0)})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected ensure + upsert, got %v", calls)
	}
	if calls[0] != "PUT /collections/session_abc123" {
		t.Fatalf("unexpected ensure call %q", calls[0])
	}
	if !strings.HasPrefix(calls[1], "PUT /collections/session_abc123/points") {
		t.Fatalf("unexpected upsert call %q", calls[1])
	}
}

func TestInsertRejectsMixedDimensionsLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for a rejected batch")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	index := Factory{BaseURL: server.URL}.NewIndex("s1")
	err := index.Insert(context.Background(), []domain.VectorEntry{
		testEntry("a", 1, 0),
		testEntry("b", 1, 0, 0),
	})
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSecondInsertMustMatchCollectionDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	index := Factory{BaseURL: server.URL}.NewIndex("s1")
	ctx := context.Background()
	if err := index.Insert(ctx, []domain.VectorEntry{testEntry("a", 1, 0, 0)}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := index.Insert(ctx, []domain.VectorEntry{testEntry("b", 1, 0)})
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchDecodesScoredPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/points/query") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points": []map[string]any{
						{"score": 0.91, "payload": map[string]any{
							"text":     "the sky is blue",
							"metadata": map[string]any{"path": "sky.txt", "type": "document"},
						}},
					},
				},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	index := Factory{BaseURL: server.URL}.NewIndex("s1")
	ctx := context.Background()
	if err := index.Insert(ctx, []domain.VectorEntry{testEntry("seed", 1, 0)}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	hits, err := index.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.Text != "the sky is blue" || hits[0].Score != 0.91 {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits[0].Chunk.Path() != "sky.txt" {
		t.Fatalf("metadata not decoded: %+v", hits[0].Chunk)
	}
}

func TestSearchBeforeAnyInsertReturnsNothing(t *testing.T) {
	index := Factory{BaseURL: "http://unreachable.invalid"}.NewIndex("s1")
	hits, err := index.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits before first insert, got %v", hits)
	}
}

func TestDestroyDropsCollectionOnce(t *testing.T) {
	var deletes int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletes++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	index := Factory{BaseURL: server.URL}.NewIndex("s1")
	ctx := context.Background()
	if err := index.Insert(ctx, []domain.VectorEntry{testEntry("a", 1, 0)}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := index.Destroy(ctx); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := index.Destroy(ctx); err != nil {
		t.Fatalf("second Destroy() error = %v", err)
	}
	if deletes != 1 {
		t.Fatalf("expected exactly one collection delete, got %d", deletes)
	}
}
