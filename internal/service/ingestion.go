package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/telemetry"
)

// IngestionService runs the document ingestion pipeline: extract text, chunk
// it, embed every chunk, then store the document and all chunks in one
// transaction. All embeddings are computed before anything is written, so a
// failure at any step leaves no partial document visible to readers.
type IngestionService struct {
	extractor TextExtractor
	chunker   *Chunker
	embedder  EmbeddingClient
	tx        TxRunner
	archive   ArchiveStore
	uuidGen   UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(extractor TextExtractor, chunker *Chunker, embedder EmbeddingClient, tx TxRunner) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		tx:        tx,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewIngestionServiceWithArchive creates an IngestionService that also
// archives the original file bytes after a successful ingest.
func NewIngestionServiceWithArchive(extractor TextExtractor, chunker *Chunker, embedder EmbeddingClient, tx TxRunner, archive ArchiveStore) *IngestionService {
	svc := NewIngestionService(extractor, chunker, embedder, tx)
	svc.archive = archive
	return svc
}

// NewIngestionServiceWithUUIDGen creates an IngestionService with a custom
// UUID generator (for testing).
func NewIngestionServiceWithUUIDGen(extractor TextExtractor, chunker *Chunker, embedder EmbeddingClient, tx TxRunner, uuidGen UUIDGenerator) *IngestionService {
	svc := NewIngestionService(extractor, chunker, embedder, tx)
	svc.uuidGen = uuidGen
	return svc
}

// ArchiveKey is where the original bytes of a document live in the archive.
func ArchiveKey(documentID string) string {
	return "documents/" + documentID + ".pdf"
}

// Ingest runs the full pipeline for one uploaded file and returns the new
// document id and chunk count.
func (s *IngestionService) Ingest(ctx context.Context, filename string, data []byte) (*domain.IngestResult, error) {
	documentID := s.uuidGen.NewString()

	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Filename:   filename,
	})
	defer span.End()

	status := domain.IngestStatusReceived
	log.Printf("ingest %s: %s (%s, %d bytes)", documentID, status, filename, len(data))

	fail := func(step domain.IngestStatus, err error) (*domain.IngestResult, error) {
		log.Printf("ingest %s: %s at %s: %v", documentID, domain.IngestStatusFailed, step, err)
		span.SetError(err)
		return nil, err
	}

	status = domain.IngestStatusExtracting
	text, err := s.extractor.ExtractText(data, filename)
	if err != nil {
		return fail(status, err)
	}

	status = domain.IngestStatusChunking
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return fail(status, domain.NewExtractionError(filename, domain.ErrNoExtractableText))
	}

	status = domain.IngestStatusEmbedding
	log.Printf("ingest %s: %s (%d chunks)", documentID, status, len(chunks))
	embeddings, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fail(status, err)
	}

	status = domain.IngestStatusStoring
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        documentID,
		Name:      filename,
		CreatedAt: now,
	}

	rows := make([]domain.Chunk, len(chunks))
	for i, content := range chunks {
		rows[i] = domain.Chunk{
			ID:           s.uuidGen.NewString(),
			DocumentID:   documentID,
			DocumentName: filename,
			ChunkIndex:   i,
			Content:      content,
			Embedding:    embeddings[i],
			CreatedAt:    now,
		}
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Chunks().InsertChunks(ctx, rows)
	})
	if err != nil {
		if _, ok := err.(*domain.DomainError); !ok {
			err = domain.NewStorageError("ingest", err)
		}
		return fail(status, err)
	}

	if s.archive != nil {
		if err := s.archive.Store(ctx, ArchiveKey(documentID), data, "application/pdf"); err != nil {
			// The document is fully ingested; a missing archive copy only
			// disables the download endpoint for this file.
			log.Printf("ingest %s: archive store failed: %v", documentID, err)
		}
	}

	status = domain.IngestStatusComplete
	log.Printf("ingest %s: %s (%d chunks)", documentID, status, len(rows))

	return &domain.IngestResult{
		DocumentID:    documentID,
		Filename:      filename,
		ChunksCreated: len(rows),
		Message:       fmt.Sprintf("Successfully ingested %s with %d chunks", filename, len(rows)),
	}, nil
}
