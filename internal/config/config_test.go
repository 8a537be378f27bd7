package config

import "testing"

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("MAX_UPLOAD_SIZE_BYTES", "")

	cfg := Load()
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected default chunk size 1000, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 200 {
		t.Fatalf("expected default chunk overlap 200, got %d", cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.MaxUploadSizeBytes != 25<<20 {
		t.Fatalf("expected default upload limit 25MiB, got %d", cfg.MaxUploadSizeBytes)
	}
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected default vector backend memory, got %q", cfg.VectorBackend)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("CHUNK_OVERLAP", "100")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("VECTOR_BACKEND", "qdrant")
	t.Setenv("MAX_UPLOAD_SIZE_BYTES", "1048576")

	cfg := Load()
	if cfg.ChunkSize != 800 {
		t.Fatalf("expected chunk size 800, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 100 {
		t.Fatalf("expected chunk overlap 100, got %d", cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RAGTopK)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("expected vector backend qdrant, got %q", cfg.VectorBackend)
	}
	if cfg.MaxUploadSizeBytes != 1<<20 {
		t.Fatalf("expected upload limit 1MiB, got %d", cfg.MaxUploadSizeBytes)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("MAX_UPLOAD_SIZE_BYTES", "not-a-number")

	cfg := Load()
	if cfg.ChunkSize != 1000 {
		t.Fatalf("malformed CHUNK_SIZE should fall back to 1000, got %d", cfg.ChunkSize)
	}
	if cfg.MaxUploadSizeBytes != 25<<20 {
		t.Fatalf("malformed MAX_UPLOAD_SIZE_BYTES should fall back, got %d", cfg.MaxUploadSizeBytes)
	}
}
