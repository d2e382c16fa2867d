package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// The embedding model is trained with asymmetric instruction prefixes:
// corpus text and query text must be prefixed differently or similarity
// ranking silently degrades.
const (
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

// EmbedderConfig represents the configuration for the embedding model.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int    // expected output dimension; 0 disables the check
}

type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder wraps a sentence-embedding model behind document/query modes.
type Embedder struct {
	config EmbedderConfig
	client embeddingClient
}

// NewEmbedder creates an Embedder with the given configuration. Failure to
// reach the model is fatal at construction; there are no retries.
func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{config: config, client: client}, nil
}

// EmbedDocuments embeds corpus texts with the document prefix, one batch
// call for the whole slice.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = documentPrefix + text
	}

	vectors, err := e.client.CreateEmbedding(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	if err := e.checkDimension(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a search query with the query prefix.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.CreateEmbedding(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	if err := e.checkDimension(vectors); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) checkDimension(vectors [][]float32) error {
	if e.config.Dimension == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != e.config.Dimension {
			return fmt.Errorf("embedding dimension %d does not match configured dimension %d",
				len(v), e.config.Dimension)
		}
	}
	return nil
}
