// Package openai wraps the OpenAI-compatible provider API for embedding
// generation and streamed chat completions. Any endpoint speaking the same
// protocol (OpenRouter, a local proxy) can be targeted via the base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parchment-ai/parchment/internal/domain"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultChatModel is the model used for answer generation
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingDimensions is the expected embedding dimension
	DefaultEmbeddingDimensions = 1536

	embeddingTimeout = 60 * time.Second
	chatTimeout      = 120 * time.Second
)

var (
	// ErrEmptyInput is returned when no text is provided
	ErrEmptyInput = errors.New("input texts cannot be empty")
	// ErrNoAPIKey is returned when the provider API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI defines the interface for opening a streamed completion
type ChatAPI interface {
	CreateChatStream(ctx context.Context, messages []openai.ChatCompletionMessage) (*openai.ChatCompletionStream, error)
}

// Config holds provider client configuration.
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	ChatModel           string
	EmbeddingDimensions int
}

// APIAdapter implements EmbeddingAPI and ChatAPI over go-openai.
type APIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewAPIAdapter(cfg Config) *APIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &APIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the provider embeddings endpoint. Results are
// re-associated by the response index field so output order always matches
// input order, even if the provider responds out of order.
func (a *APIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

// CreateChatStream opens a token-streamed chat completion.
func (a *APIAdapter) CreateChatStream(ctx context.Context, messages []openai.ChatCompletionMessage) (*openai.ChatCompletionStream, error) {
	return a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: messages,
		Stream:   true,
	})
}

// Client provides embedding and generation capabilities with dimension
// validation and a single retry for transient provider failures.
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

// NewClient creates a new provider client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new provider client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	adapter := NewAPIAdapter(cfg)
	return &Client{
		embeddings: adapter,
		chat:       adapter,
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// EmbedTexts generates one fixed-dimension vector per input text, in input
// order. A transient failure (timeout, rate limit, 5xx) is retried once with
// backoff; non-transient failures surface immediately as provider errors.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()

	var embeddings [][]float32
	operation := func() error {
		result, err := c.embeddings.CreateEmbeddings(ctx, texts)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		embeddings = result
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return nil, domain.NewProviderError("embedding", err)
	}

	for i, emb := range embeddings {
		if len(emb) != c.dimensions {
			return nil, domain.NewDomainErrorWithCause(
				domain.ErrCodeDimensionMismatch,
				fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(emb), c.dimensions),
				domain.ErrDimensionMismatch,
			)
		}
	}

	return embeddings, nil
}

// EmbedText generates an embedding for a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// ChatStream yields generated text fragments in order.
type ChatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next non-empty fragment. io.EOF marks a normal end of
// stream; any other error means the stream failed mid-generation.
func (s *ChatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		content := resp.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		return content, nil
	}
}

// Close releases the underlying connection.
func (s *ChatStream) Close() error {
	return s.stream.Close()
}

// StreamCompletion opens a streamed completion for the given conversation.
// Opening the stream is retried once for transient failures; mid-stream
// failures are not retried and surface through Recv.
func (c *Client) StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (*ChatStream, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyInput
	}

	var stream *openai.ChatCompletionStream
	operation := func() error {
		s, err := c.chat.CreateChatStream(ctx, messages)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		stream = s
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return nil, domain.NewProviderError("generation", err)
	}

	return &ChatStream{stream: stream}, nil
}

// ChatTimeout bounds one full generation request.
func ChatTimeout() time.Duration {
	return chatTimeout
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx)
}

// isTransient reports whether a provider error is worth one retry. Rate
// limits and server-side failures are transient; other API errors (bad
// request, auth) are not. Anything that is not an API error is assumed to be
// a network fault.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
