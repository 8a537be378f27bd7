package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
}

func TestGenerateSendsModelAndPrompt(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  The sky is blue.\n"}},
			},
		})
	}))
	defer server.Close()

	factory := &Factory{
		Groq:     ProviderConfig{BaseURL: server.URL, APIKey: "gk-test"},
		Executor: testExecutor(),
	}
	client := factory.ForModel(domain.ModelInfo{ID: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq})

	answer, err := client.Generate(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "The sky is blue." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if gotAuth != "Bearer gk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotBody["model"] != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model in payload: %v", gotBody["model"])
	}
}

func TestForModelRoutesByProvider(t *testing.T) {
	factory := &Factory{
		Groq:   ProviderConfig{BaseURL: "https://groq.local", APIKey: "gk"},
		OpenAI: ProviderConfig{BaseURL: "https://openai.local", APIKey: "ok"},
	}

	groq := factory.ForModel(domain.ModelInfo{ID: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq}).(*Client)
	if groq.baseURL != "https://groq.local" || groq.apiKey != "gk" {
		t.Fatalf("groq model bound to wrong provider: %s", groq.baseURL)
	}

	openai := factory.ForModel(domain.ModelInfo{ID: "gpt-4o", Provider: domain.ProviderOpenAI}).(*Client)
	if openai.baseURL != "https://openai.local" || openai.apiKey != "ok" {
		t.Fatalf("openai model bound to wrong provider: %s", openai.baseURL)
	}
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	factory := &Factory{
		Groq:     ProviderConfig{BaseURL: server.URL, APIKey: "gk"},
		Executor: testExecutor(),
	}
	client := factory.ForModel(domain.ModelInfo{ID: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq})

	answer, err := client.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "ok" || calls != 2 {
		t.Fatalf("expected retry to recover, got answer=%q calls=%d", answer, calls)
	}
}

func TestGenerateMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	factory := &Factory{
		Groq: ProviderConfig{BaseURL: server.URL, APIKey: "gk"},
	}
	client := factory.ForModel(domain.ModelInfo{ID: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq})

	_, err := client.Generate(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	factory := &Factory{
		Groq: ProviderConfig{BaseURL: server.URL, APIKey: "gk"},
	}
	client := factory.ForModel(domain.ModelInfo{ID: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq})

	if _, err := client.Generate(context.Background(), "q"); err == nil {
		t.Fatal("expected error when no choices returned")
	}
}
