package service

import (
	"context"
	"log"

	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/telemetry"
)

// DeleteResult reports a completed document deletion.
type DeleteResult struct {
	DocumentID    string
	ChunksDeleted int
}

// DocumentService handles listing, deletion, and stats for ingested
// documents.
type DocumentService struct {
	docs    DocumentStore
	tx      TxRunner
	archive ArchiveStore
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(docs DocumentStore, tx TxRunner) *DocumentService {
	return &DocumentService{docs: docs, tx: tx}
}

// NewDocumentServiceWithArchive creates a DocumentService that also manages
// archived original files.
func NewDocumentServiceWithArchive(docs DocumentStore, tx TxRunner, archive ArchiveStore) *DocumentService {
	return &DocumentService{docs: docs, tx: tx, archive: archive}
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]*domain.DocumentInfo, error) {
	return s.docs.List(ctx)
}

// Delete removes a document and all its chunks atomically.
func (s *DocumentService) Delete(ctx context.Context, documentID string) (*DeleteResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
	})
	defer span.End()

	var chunksDeleted int
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		n, err := repos.Chunks().DeleteByDocument(ctx, documentID)
		if err != nil {
			return err
		}
		chunksDeleted = n
		return repos.Documents().Delete(ctx, documentID)
	})
	if err != nil {
		if _, ok := err.(*domain.DomainError); !ok {
			err = domain.NewStorageError("delete document", err)
		}
		span.SetError(err)
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, ArchiveKey(documentID)); err != nil {
			log.Printf("delete %s: archive delete failed: %v", documentID, err)
		}
	}

	log.Printf("delete %s: removed %d chunks", documentID, chunksDeleted)
	return &DeleteResult{DocumentID: documentID, ChunksDeleted: chunksDeleted}, nil
}

// Stats returns corpus-wide document and chunk counts.
func (s *DocumentService) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return s.docs.Stats(ctx)
}

// DownloadURL returns a presigned URL for the archived original file.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return "", err
	}
	if s.archive == nil {
		return "", domain.ErrArchiveNotEnabled
	}
	return s.archive.DownloadURL(ctx, ArchiveKey(documentID))
}
