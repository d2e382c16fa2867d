// Package chunker splits document text into semantically coherent chunks.
//
// Segmentation is a greedy single pass over sentences: a new chunk starts
// when the token budget would be exceeded or when the embedding similarity
// between adjacent sentences drops below the configured threshold. Chunks
// are never re-split or merged after the initial boundary decision.
package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
)

type ChunkerConfig struct {
	ChunkSize           int     // maximum chunk size in (approximate) tokens
	SimilarityThreshold float64 // adjacent-sentence cosine similarity boundary
}

type Chunker struct {
	config   ChunkerConfig
	embedder types.Embedder
}

func NewWithConfig(config ChunkerConfig, embedder types.Embedder) *Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 512
	}
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = 0.5
	}

	return &Chunker{
		config:   config,
		embedder: embedder,
	}
}

// Chunk splits text into chunks without embeddings. Empty or whitespace-only
// input yields an empty result, not an error.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]models.Chunk, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	// Boundary detection needs per-sentence embeddings; a single sentence has
	// no boundaries to decide.
	var vectors [][]float32
	if len(sentences) > 1 {
		var err error
		vectors, err = c.embedder.EmbedDocuments(ctx, sentences)
		if err != nil {
			return nil, fmt.Errorf("failed to embed sentences: %w", err)
		}
	}

	var chunks []models.Chunk
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Text:       strings.Join(current, " "),
			Index:      len(chunks),
			TokenCount: currentTokens,
		})
		current = nil
		currentTokens = 0
	}

	for i, sentence := range sentences {
		tokens := len(strings.Fields(sentence))

		if len(current) > 0 {
			overBudget := currentTokens+tokens > c.config.ChunkSize
			boundary := i > 0 && cosineSimilarity(vectors[i-1], vectors[i]) < float32(c.config.SimilarityThreshold)
			if overBudget || boundary {
				flush()
			}
		}

		current = append(current, sentence)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}

// ChunkAndEmbed chunks the text and attaches embeddings, produced in one
// batch call per document and zipped back onto the chunks by position.
func (c *Chunker) ChunkAndEmbed(ctx context.Context, text string) ([]models.Chunk, error) {
	chunks, err := c.Chunk(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	return chunks, nil
}

func splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
				break
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
