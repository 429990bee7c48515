package domain

import (
	"fmt"
	"time"
)

// Document represents one ingested source file. A document exclusively owns
// its chunks: deleting the document removes them atomically.
type Document struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Chunk represents a contiguous, possibly overlapping slice of a document's
// text paired with its embedding vector. DocumentName is denormalized for
// citation display.
type Chunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	Content      string
	Embedding    []float32
	CreatedAt    time.Time
}

// ScoredChunk is a chunk annotated with its cosine similarity to a query
// vector. Embeddings are not carried back from search results.
type ScoredChunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	Content      string
	Score        float32
}

// DocumentInfo summarizes a document for listings.
type DocumentInfo struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	ChunkCount int
}

// StoreStats holds corpus-wide counts.
type StoreStats struct {
	Documents int
	Chunks    int
}

// ValidateChunk validates a Chunk before it is persisted.
func ValidateChunk(c *Chunk, dimensions int) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk ChunkIndex cannot be negative")
	}
	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}
	if len(c.Embedding) != dimensions {
		return ErrDimensionMismatch
	}
	return nil
}
