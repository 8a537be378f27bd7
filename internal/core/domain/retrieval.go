package domain

// Chunk is one bounded-length text window derived from a document.
// Metadata is shared verbatim by every chunk of the owning document.
type Chunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func (c Chunk) Path() string {
	return metadataString(c.Metadata, "path")
}

// VectorEntry is one embedded chunk inside a vector index. Every entry
// of one index has the same vector length, fixed by the first insert.
type VectorEntry struct {
	Vector []float32 `json:"vector"`
	Chunk  Chunk     `json:"chunk"`
}

// RetrievedChunk is a chunk returned by a vector index search together
// with its similarity score.
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
