package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/telemetry"
)

const systemPromptTemplate = `You are a helpful AI assistant with access to a knowledge base.
Answer questions based on the provided context. If the context doesn't contain
relevant information, say so and provide a general answer if possible.
Always cite the source documents when using information from the context.

Context from knowledge base:
%s`

const emptyContextNotice = "No relevant documents found in the knowledge base."

// CompletionStream yields generated text fragments in order. Recv returns
// io.EOF at a normal end of stream.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// GenerationClient defines the interface for streamed answer generation
type GenerationClient interface {
	StreamCompletion(ctx context.Context, messages []domain.ChatMessage) (CompletionStream, error)
}

// ChatConfig controls retrieval, prompt assembly and the generation budget.
type ChatConfig struct {
	TopK              int
	MaxHistory        int
	GenerationTimeout time.Duration
}

// DefaultChatConfig provides sane defaults for the chat pipeline.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		TopK:              5,
		MaxHistory:        10,
		GenerationTimeout: 120 * time.Second,
	}
}

// ChatInput is one chat request: the new question plus the caller-supplied
// conversation history in chronological order.
type ChatInput struct {
	Message string
	History []domain.ChatMessage
}

// ChatService answers questions from the ingested corpus: it embeds the
// question, retrieves the most similar chunks, and streams a grounded answer.
type ChatService struct {
	embedder  EmbeddingClient
	chunks    ChunkStore
	generator GenerationClient
	cfg       ChatConfig
}

// NewChatService creates a new ChatService instance
func NewChatService(embedder EmbeddingClient, chunks ChunkStore, generator GenerationClient, cfg ChatConfig) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultChatConfig().TopK
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultChatConfig().MaxHistory
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultChatConfig().GenerationTimeout
	}
	return &ChatService{
		embedder:  embedder,
		chunks:    chunks,
		generator: generator,
		cfg:       cfg,
	}
}

// Ask runs retrieval and returns an ordered event stream: one sources event,
// then content events in generation order, then a terminal done event. A
// generation failure ends the stream with a single error event instead of
// done. Failures before the stream opens (embedding, search) are returned
// directly. The channel is closed when the stream ends for any reason;
// cancelling ctx stops generation promptly.
func (s *ChatService) Ask(ctx context.Context, input ChatInput) (<-chan domain.ChatEvent, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		Operation: "chat",
	})

	queryEmbedding, err := s.embedder.EmbedText(ctx, input.Message)
	if err != nil {
		span.SetError(err)
		span.End()
		return nil, err
	}

	retrieved, err := s.chunks.SimilaritySearch(ctx, queryEmbedding, s.cfg.TopK)
	if err != nil {
		span.SetError(err)
		span.End()
		if _, ok := err.(*domain.DomainError); !ok {
			err = domain.NewStorageError("similarity search", err)
		}
		return nil, err
	}

	// Zero retrieved chunks is not an error: the model answers from general
	// knowledge against an empty context.
	messages := s.buildMessages(input, retrieved)
	sources := sourceNames(retrieved)

	events := make(chan domain.ChatEvent, 16)
	go func() {
		defer close(events)
		defer span.End()

		// One budget covers opening the stream and draining every token.
		ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()

		send := func(ev domain.ChatEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(domain.ChatEvent{Type: domain.ChatEventSources, Sources: sources}) {
			return
		}

		stream, err := s.generator.StreamCompletion(ctx, messages)
		if err != nil {
			span.SetError(err)
			send(domain.ChatEvent{Type: domain.ChatEventError, Error: err.Error()})
			return
		}
		defer stream.Close()

		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(domain.ChatEvent{Type: domain.ChatEventDone})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					// Caller went away; nobody is listening for an error event.
					log.Printf("chat: stream cancelled: %v", ctx.Err())
					return
				}
				span.SetError(err)
				send(domain.ChatEvent{Type: domain.ChatEventError, Error: fmt.Sprintf("generation failed: %v", err)})
				return
			}
			if !send(domain.ChatEvent{Type: domain.ChatEventContent, Content: fragment}) {
				return
			}
		}
	}()

	return events, nil
}

// buildMessages assembles the generation prompt: system prompt carrying the
// retrieved context, the bounded conversation history, then the question.
func (s *ChatService) buildMessages(input ChatInput, retrieved []*domain.ScoredChunk) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(input.History)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.ChatRoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, buildContext(retrieved)),
	})

	history := input.History
	if len(history) > s.cfg.MaxHistory {
		history = history[len(history)-s.cfg.MaxHistory:]
	}
	messages = append(messages, history...)

	messages = append(messages, domain.ChatMessage{
		Role:    domain.ChatRoleUser,
		Content: input.Message,
	})
	return messages
}

// buildContext formats retrieved chunks, in similarity order, as numbered
// source blocks.
func buildContext(retrieved []*domain.ScoredChunk) string {
	if len(retrieved) == 0 {
		return emptyContextNotice
	}

	parts := make([]string, 0, len(retrieved))
	for i, chunk := range retrieved {
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, chunk.DocumentName, chunk.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// sourceNames returns the distinct owning document names in order of first
// appearance in the similarity ranking.
func sourceNames(retrieved []*domain.ScoredChunk) []string {
	seen := make(map[string]bool, len(retrieved))
	names := make([]string, 0, len(retrieved))
	for _, chunk := range retrieved {
		if seen[chunk.DocumentName] {
			continue
		}
		seen[chunk.DocumentName] = true
		names = append(names, chunk.DocumentName)
	}
	return names
}
