package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/parchment-ai/parchment/internal/config"
	"github.com/parchment-ai/parchment/internal/database"
	"github.com/parchment-ai/parchment/internal/extract"
	"github.com/parchment-ai/parchment/internal/openai"
	"github.com/parchment-ai/parchment/internal/repository"
	"github.com/parchment-ai/parchment/internal/service"
)

// IngestCmd returns the ingest command for loading documents from disk
// without going through the HTTP API.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf> [file.pdf...]",
		Short: "Ingest PDF documents from disk",
		Long:  "Extract, chunk, embed, and store one or more local PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("ingestion requires OPENAI_API_KEY")
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	txRunner := repository.NewTxRunner(pool, cfg.EmbeddingDimensions)

	chunker, err := service.NewChunker(service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		ChatModel:           cfg.ChatModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	svc := service.NewIngestionService(extract.NewPDFExtractor(), chunker, client, txRunner)

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		result, err := svc.Ingest(ctx, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		if outputFormat == "json" {
			data := map[string]interface{}{
				"document_id":    result.DocumentID,
				"filename":       result.Filename,
				"chunks_created": result.ChunksCreated,
			}
			jsonBytes, _ := json.MarshalIndent(data, "", "  ")
			fmt.Println(string(jsonBytes))
		} else {
			fmt.Printf("ingested %s: document %s, %d chunks\n", result.Filename, result.DocumentID, result.ChunksCreated)
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}
