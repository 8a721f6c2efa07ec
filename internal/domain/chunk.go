package domain

import "fmt"

// Source labels which input a chunk came from. It also names the index slot.
type Source string

const (
	// SourceRequirements is the requirements specification ("техническое задание").
	SourceRequirements Source = "tz"
	// SourceImplementation is the implementation/project documentation.
	SourceImplementation Source = "doc"
)

// ParseSource validates a source label.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceRequirements, SourceImplementation:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}

// ChunkMetadata identifies a chunk within its document.
type ChunkMetadata struct {
	Source  Source `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

// Chunk is a bounded slice of document text used for embedding and retrieval.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a retrieval hit; Score is cosine similarity in [-1, 1].
type ScoredChunk struct {
	Chunk
	Score float64
}
