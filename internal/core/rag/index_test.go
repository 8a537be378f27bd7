package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
)

type chunkerFake struct {
	size int
}

func (f *chunkerFake) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	size := f.size
	if size <= 0 {
		size = 1000
	}
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	return append(out, text)
}

type embedderFake struct {
	err        error
	embedCalls int
}

// Vectors encode literal text so the index fake can do containment
// matching: each chunk maps to a stable two-value vector.
func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type indexFake struct {
	entries    []domain.VectorEntry
	insertErr  error
	destroyed  bool
	lastSearch int
}

func (f *indexFake) Insert(_ context.Context, entries []domain.VectorEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *indexFake) Search(_ context.Context, _ []float32, k int) ([]domain.RetrievedChunk, error) {
	f.lastSearch = k
	out := make([]domain.RetrievedChunk, 0, k)
	for i, entry := range f.entries {
		if i == k {
			break
		}
		out = append(out, domain.RetrievedChunk{Chunk: entry.Chunk, Score: 1 - float64(i)*0.1})
	}
	return out, nil
}

func (f *indexFake) Destroy(context.Context) error {
	f.destroyed = true
	return nil
}

// generatorFake answers by literal containment over the prompt context,
// standing in for a real language model.
type generatorFake struct {
	err    error
	prompt string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	for _, word := range []string{"blue", "green", "red"} {
		if strings.Contains(prompt, word) {
			return "The answer mentions " + word + ".", nil
		}
	}
	return "The context does not say.", nil
}

func newTestIndex(embedder *embedderFake, generator *generatorFake, index *indexFake) *SessionIndex {
	return NewSessionIndex(
		"llama-3.3-70b-versatile",
		&chunkerFake{},
		embedder,
		generator,
		func() ports.VectorIndex { return index },
		nil,
	)
}

func TestQueryWithoutIngestReturnsSentinel(t *testing.T) {
	s := newTestIndex(&embedderFake{}, &generatorFake{}, &indexFake{})

	answer, err := s.Query(context.Background(), "anything?", 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer != "No documents loaded yet." {
		t.Fatalf("expected empty-session sentinel, got %q", answer)
	}
}

func TestQueryRejectsEmptyQuestionBeforeIO(t *testing.T) {
	embedder := &embedderFake{}
	s := newTestIndex(embedder, &generatorFake{}, &indexFake{})

	if _, err := s.Query(context.Background(), "   ", 5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if embedder.embedCalls != 0 {
		t.Fatalf("expected no embedding calls, got %d", embedder.embedCalls)
	}
}

func TestIngestRejectsEmptyAndAllFailedBatches(t *testing.T) {
	s := newTestIndex(&embedderFake{}, &generatorFake{}, &indexFake{})

	if _, err := s.Ingest(context.Background(), nil); !domain.IsKind(err, domain.ErrNoValidDocuments) {
		t.Fatalf("expected ErrNoValidDocuments for empty batch, got %v", err)
	}

	failed := []domain.DocumentRecord{
		domain.FailedRecord("bad.pdf", "extraction failed"),
		domain.FailedRecord("worse.mp3", "too large"),
	}
	report, err := s.Ingest(context.Background(), failed)
	if !domain.IsKind(err, domain.ErrNoValidDocuments) {
		t.Fatalf("expected ErrNoValidDocuments for all-failed batch, got %v", err)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("expected both extraction failures listed, got %+v", report)
	}
	if got := s.ManifestDescription(); got != "No documents ingested yet." {
		t.Fatalf("manifest changed after rejected ingest: %q", got)
	}
}

func TestIngestThenQueryAnswersFromContent(t *testing.T) {
	index := &indexFake{}
	generator := &generatorFake{}
	s := newTestIndex(&embedderFake{}, generator, index)

	report, err := s.Ingest(context.Background(), []domain.DocumentRecord{
		domain.NewRecord(domain.SourceDocument, "sky.txt", "The sky is blue."),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Successful) != 1 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(index.entries) != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", len(index.entries))
	}

	answer, err := s.Query(context.Background(), "What color is the sky?", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !strings.Contains(answer, "blue") {
		t.Fatalf("expected answer to mention blue, got %q", answer)
	}
	if !strings.Contains(generator.prompt, "[Source: sky.txt]") {
		t.Fatalf("prompt missing source attribution:\n%s", generator.prompt)
	}
}

func TestIngestEmbedFailureIsPerDocument(t *testing.T) {
	index := &indexFake{}
	embedder := &embedderFake{err: errors.New("quota exceeded")}
	s := newTestIndex(embedder, &generatorFake{}, index)

	report, err := s.Ingest(context.Background(), []domain.DocumentRecord{
		domain.NewRecord(domain.SourceText, "a.txt", "alpha"),
		domain.NewRecord(domain.SourceText, "b.txt", "beta"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("expected both documents reported failed, got %+v", report)
	}
	if len(index.entries) != 0 {
		t.Fatalf("expected no entries indexed, got %d", len(index.entries))
	}
	if s.DocumentCount() != 0 {
		t.Fatalf("manifest must not record failed documents")
	}
}

func TestQueryCollaboratorFailureIsInBandText(t *testing.T) {
	index := &indexFake{}
	generator := &generatorFake{}
	s := newTestIndex(&embedderFake{}, generator, index)

	if _, err := s.Ingest(context.Background(), []domain.DocumentRecord{
		domain.NewRecord(domain.SourceText, "a.txt", "alpha"),
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	generator.err = errors.New("provider unavailable")
	answer, err := s.Query(context.Background(), "what is alpha?", 3)
	if err != nil {
		t.Fatalf("Query() must not propagate collaborator errors, got %v", err)
	}
	if !strings.Contains(answer, "Error:") || !strings.Contains(answer, "provider unavailable") {
		t.Fatalf("expected in-band error text, got %q", answer)
	}
}

func TestManifestDescriptionListsDocumentsInOrder(t *testing.T) {
	s := newTestIndex(&embedderFake{}, &generatorFake{}, &indexFake{})

	if _, err := s.Ingest(context.Background(), []domain.DocumentRecord{
		domain.NewRecord(domain.SourceDocument, "report.pdf", "quarterly numbers"),
		domain.NewRecord(domain.SourceURL, "https://example.com", "homepage text"),
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := "- report.pdf (Type: document)\n- https://example.com (Type: url)"
	if got := s.ManifestDescription(); got != want {
		t.Fatalf("manifest description = %q, want %q", got, want)
	}
}

func TestDestroyReleasesIndex(t *testing.T) {
	index := &indexFake{}
	s := newTestIndex(&embedderFake{}, &generatorFake{}, index)

	if _, err := s.Ingest(context.Background(), []domain.DocumentRecord{
		domain.NewRecord(domain.SourceText, "a.txt", "alpha"),
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := s.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if !index.destroyed {
		t.Fatalf("expected underlying index destroyed")
	}

	answer, err := s.Query(context.Background(), "anything?", 1)
	if err != nil || answer != "No documents loaded yet." {
		t.Fatalf("destroyed session should behave as empty, got %q err %v", answer, err)
	}
}
