package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openailib "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/parchment-ai/parchment/internal/api/handlers"
	"github.com/parchment-ai/parchment/internal/config"
	"github.com/parchment-ai/parchment/internal/database"
	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/extract"
	"github.com/parchment-ai/parchment/internal/jobs"
	"github.com/parchment-ai/parchment/internal/openai"
	"github.com/parchment-ai/parchment/internal/repository"
	"github.com/parchment-ai/parchment/internal/server"
	"github.com/parchment-ai/parchment/internal/service"
	"github.com/parchment-ai/parchment/internal/storage"
	"github.com/parchment-ai/parchment/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the parchment API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Tracing is opt-in via SENTRY_DSN
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// sample everything in development, 10% elsewhere
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool, cfg.EmbeddingDimensions)
	txRunner := repository.NewTxRunner(pool, cfg.EmbeddingDimensions)

	var archive service.ArchiveStore
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
	}

	chunker, err := service.NewChunker(service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}
	extractor := extract.NewPDFExtractor()

	var ingestionHandler handlers.IngestionService = &NoOpIngestionService{}
	var chatHandler handlers.ChatService = &NoOpChatService{}
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			ChatModel:           cfg.ChatModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})

		if archive != nil {
			ingestionHandler = service.NewIngestionServiceWithArchive(extractor, chunker, client, txRunner, archive)
		} else {
			ingestionHandler = service.NewIngestionService(extractor, chunker, client, txRunner)
		}

		chatConfig := service.ChatConfig{
			TopK:              cfg.TopK,
			MaxHistory:        cfg.MaxHistory,
			GenerationTimeout: openai.ChatTimeout(),
		}
		chatHandler = service.NewChatService(client, chunkRepo, &GenerationAdapter{client: client}, chatConfig)
	} else {
		log.Println("OPENAI_API_KEY not set: ingestion and chat disabled")
	}

	var documentSvc *service.DocumentService
	if archive != nil {
		documentSvc = service.NewDocumentServiceWithArchive(documentRepo, txRunner, archive)
	} else {
		documentSvc = service.NewDocumentService(documentRepo, txRunner)
	}

	maintenanceWorker := jobs.NewWorker("maintenance", jobs.NewMaintenanceWorker(pool), 15*time.Minute)
	go maintenanceWorker.Start(ctx)

	routerCfg := server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestionHandler, documentSvc),
		ChatHandler:     handlers.NewChatHandler(chatHandler),
		DB:              pool,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	maintenanceWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// GenerationAdapter bridges the provider-neutral chat pipeline to the
// go-openai message types.
type GenerationAdapter struct {
	client *openai.Client
}

func (a *GenerationAdapter) StreamCompletion(ctx context.Context, messages []domain.ChatMessage) (service.CompletionStream, error) {
	converted := make([]openailib.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openailib.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return a.client.StreamCompletion(ctx, converted)
}

type NoOpIngestionService struct{}

func (s *NoOpIngestionService) Ingest(ctx context.Context, filename string, data []byte) (*domain.IngestResult, error) {
	return nil, fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

type NoOpChatService struct{}

func (s *NoOpChatService) Ask(ctx context.Context, input service.ChatInput) (<-chan domain.ChatEvent, error) {
	return nil, fmt.Errorf("chat not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	// golang-migrate drives a database/sql connection, not pgxpool
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("migrations applied")
	return nil
}
