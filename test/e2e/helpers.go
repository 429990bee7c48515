//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parchment-ai/parchment/internal/api/handlers"
	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/repository"
	"github.com/parchment-ai/parchment/internal/server"
	"github.com/parchment-ai/parchment/internal/service"
	"github.com/parchment-ai/parchment/internal/testutil"
)

const embeddingDimensions = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	HTTPClient *http.Client
}

// stubExtractor treats the uploaded bytes as the document text, so tests do
// not need real PDF files.
type stubExtractor struct{}

func (stubExtractor) ExtractText(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", domain.NewExtractionError(filename, domain.ErrNoExtractableText)
	}
	return string(data), nil
}

// stubEmbedder derives a deterministic vector from the text so identical
// text always lands on the same point.
type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = textVector(text)
	}
	return out, nil
}

func (stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return textVector(text), nil
}

func textVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, embeddingDimensions)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33)) / float32(1<<30)
	}
	return v
}

// stubGenerator streams a fixed answer.
type stubGenerator struct {
	fragments []string
}

type stubStream struct {
	fragments []string
	pos       int
}

func (s *stubStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *stubStream) Close() error { return nil }

func (g *stubGenerator) StreamCompletion(ctx context.Context, messages []domain.ChatMessage) (service.CompletionStream, error) {
	return &stubStream{fragments: g.fragments}, nil
}

// SetupE2EEnv creates a full test environment: a pgvector container, the
// service graph with stubbed provider clients, and an in-process HTTP server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool, embeddingDimensions)
	txRunner := repository.NewTxRunner(pool, embeddingDimensions)

	chunker, err := service.NewChunker(service.ChunkConfig{Size: 200, Overlap: 40})
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	ingestionSvc := service.NewIngestionService(stubExtractor{}, chunker, stubEmbedder{}, txRunner)
	documentSvc := service.NewDocumentService(documentRepo, txRunner)
	chatSvc := service.NewChatService(stubEmbedder{}, chunkRepo,
		&stubGenerator{fragments: []string{"The answer ", "is 42."}},
		service.ChatConfig{TopK: 3, MaxHistory: 10})

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestionSvc, documentSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		DB:              pool,
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Server:     httptest.NewServer(router),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse is the standard success envelope
type APIResponse struct {
	Data json.RawMessage `json:"data"`
}

// Upload posts a file to the ingest endpoint as multipart form data.
func (e *E2ETestEnv) Upload(path, filename string, content []byte) (*http.Response, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.Server.URL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.HTTPClient.Do(req)
}

// GetJSON performs a GET and decodes the success envelope into out.
func (e *E2ETestEnv) GetJSON(path string, out interface{}) (int, error) {
	resp, err := e.HTTPClient.Get(e.Server.URL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		var envelope APIResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return resp.StatusCode, err
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// PostJSON posts a JSON body and returns the raw response.
func (e *E2ETestEnv) PostJSON(path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return e.HTTPClient.Post(e.Server.URL+path, "application/json", bytes.NewReader(body))
}

// Delete performs a DELETE request.
func (e *E2ETestEnv) Delete(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, e.Server.URL+path, nil)
	if err != nil {
		return nil, err
	}
	return e.HTTPClient.Do(req)
}

// DecodeEnvelope decodes a success envelope from a response body into out.
func DecodeEnvelope(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
