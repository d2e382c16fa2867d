package chunker_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/scholar/pkg/chunker"
)

// topicEmbedder maps sentences to one of two orthogonal vectors by keyword,
// so adjacent-sentence similarity is 1 within a topic and 0 across topics.
type topicEmbedder struct {
	batchCalls int
}

func (e *topicEmbedder) embed(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "dog") {
		return []float32{0, 1}
	}
	return []float32{1, 0}
}

func (e *topicEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *topicEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func TestChunkEmptyInput(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{}, &topicEmbedder{})

	for _, input := range []string{"", "   ", "\n\t\n"} {
		chunks, err := c.Chunk(context.Background(), input)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkSingleSentenceSkipsEmbedding(t *testing.T) {
	emb := &topicEmbedder{}
	c := chunker.NewWithConfig(chunker.ChunkerConfig{}, emb)

	chunks, err := c.Chunk(context.Background(), "Cats purr when content")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 4, chunks[0].TokenCount)
	assert.Zero(t, emb.batchCalls)
}

func TestChunkSplitsAtSimilarityBoundary(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 100, SimilarityThreshold: 0.5}, &topicEmbedder{})

	text := "Cats purr loudly. Cats nap in the sun. Dogs bark at night. Dogs dig many holes."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Contains(t, chunks[0].Text, "Cats purr")
	assert.Contains(t, chunks[0].Text, "Cats nap")
	assert.NotContains(t, chunks[0].Text, "Dogs")
	assert.Contains(t, chunks[1].Text, "Dogs bark")
	assert.Contains(t, chunks[1].Text, "Dogs dig")
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 6, SimilarityThreshold: 0.5}, &topicEmbedder{})

	// Three same-topic sentences of four tokens each; any two exceed the budget.
	text := "Cats purr very loudly. Cats nap every afternoon. Cats chase red dots."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.LessOrEqual(t, chunk.TokenCount, 6)
	}
}

func TestChunkReconstructsTokenStream(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 8, SimilarityThreshold: 0.5}, &topicEmbedder{})

	text := "Cats purr loudly. Cats nap in the sun! Dogs bark at night? Dogs dig holes.\nCats climb trees."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var joined []string
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		joined = append(joined, chunk.Text)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(joined, " ")))
}

func TestChunkAndEmbed(t *testing.T) {
	emb := &topicEmbedder{}
	c := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 100, SimilarityThreshold: 0.5}, emb)

	text := "Cats purr loudly. Dogs bark at night."
	chunks, err := c.ChunkAndEmbed(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)
	assert.Equal(t, []float32{0, 1}, chunks[1].Embedding)
	// One batch for sentence boundaries, one batch for chunk embeddings.
	assert.Equal(t, 2, emb.batchCalls)
}

func TestChunkAndEmbedEmptyInput(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{}, &topicEmbedder{})

	chunks, err := c.ChunkAndEmbed(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
