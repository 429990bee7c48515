package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/parchment-ai/parchment/internal/domain"
)

// DocumentStore defines the repository interface for document persistence
type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.DocumentInfo, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*domain.StoreStats, error)
}

// ChunkStore defines the repository interface for chunk persistence and
// similarity search
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]*domain.ScoredChunk, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor defines the interface for extracting text from raw
// document bytes
type TextExtractor interface {
	ExtractText(data []byte, filename string) (string, error)
}

// ArchiveStore defines the optional interface for archiving original
// document files
type ArchiveStore interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
