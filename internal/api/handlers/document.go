package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parchment-ai/parchment/internal/api"
	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/service"
)

type IngestionService interface {
	Ingest(ctx context.Context, filename string, data []byte) (*domain.IngestResult, error)
}

type DocumentService interface {
	List(ctx context.Context) ([]*domain.DocumentInfo, error)
	Delete(ctx context.Context, documentID string) (*service.DeleteResult, error)
	Stats(ctx context.Context) (*domain.StoreStats, error)
	DownloadURL(ctx context.Context, documentID string) (string, error)
}

type DocumentHandler struct {
	ingestion IngestionService
	documents DocumentService
}

func NewDocumentHandler(ingestion IngestionService, documents DocumentService) *DocumentHandler {
	return &DocumentHandler{ingestion: ingestion, documents: documents}
}

type IngestResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

type ListDocumentsResponse struct {
	Documents []*DocumentResponse `json:"documents"`
	Total     int                 `json:"total"`
}

type DeleteDocumentResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

type StatsResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

type DownloadResponse struct {
	DocumentID  string `json:"document_id"`
	DownloadURL string `json:"download_url"`
}

func documentToResponse(d *domain.DocumentInfo) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Name:       d.Name,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Ingest accepts a PDF upload as multipart form data and runs it through the
// full ingestion pipeline before responding.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := path.Base(header.Filename)
	if filename == "" || filename == "." || filename == "/" {
		api.HandleError(w, domain.ErrMissingFilename)
		return
	}
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		api.HandleError(w, domain.ErrUnsupportedFile)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		api.Error(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	result, err := h.ingestion.Ingest(r.Context(), filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &IngestResponse{
		DocumentID:    result.DocumentID,
		Filename:      result.Filename,
		ChunksCreated: result.ChunksCreated,
		Message:       result.Message,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, &ListDocumentsResponse{Documents: items, Total: len(items)})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	result, err := h.documents.Delete(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DeleteDocumentResponse{
		DocumentID:    result.DocumentID,
		ChunksDeleted: result.ChunksDeleted,
	})
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.documents.DownloadURL(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrArchiveNotEnabled) {
			api.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DownloadResponse{DocumentID: id, DownloadURL: url})
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.documents.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &StatsResponse{Documents: stats.Documents, Chunks: stats.Chunks})
}
