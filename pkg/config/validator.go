package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the fatal-at-startup requirements: embedding dimension and
// store connection info must be present before any component is constructed.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "embedding dimension must be positive",
		})
	}

	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding server URL is required",
		})
	} else if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding server URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunker.SimilarityThreshold <= 0 || c.Chunker.SimilarityThreshold >= 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1 exclusive",
		})
	}

	if c.VectorStore.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "vector_store.url",
			Message: "vector store connection string is required",
		})
	} else if _, err := url.Parse(c.VectorStore.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "vector_store.url",
			Message: "invalid vector store connection string",
		})
	}

	if c.VectorStore.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "vector_store.collection",
			Message: "collection name is required",
		})
	}

	if c.GraphStore.URI == "" {
		errors = append(errors, ValidationError{
			Field:   "graph_store.uri",
			Message: "graph store URI is required",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}
