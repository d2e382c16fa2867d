package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/pipeline"
	"github.com/xhad/scholar/pkg/store"
)

type fakeScraper struct {
	page *models.ScrapedPage
	err  error
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*models.ScrapedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := *f.page
	page.URL = url
	return &page, nil
}

type fakeChunker struct {
	err error
}

func (f *fakeChunker) Chunk(ctx context.Context, text string) ([]models.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []models.Chunk{{Text: text, Index: 0, TokenCount: len(strings.Fields(text))}}, nil
}

func (f *fakeChunker) ChunkAndEmbed(ctx context.Context, text string) ([]models.Chunk, error) {
	chunks, err := f.Chunk(ctx, text)
	if err != nil || len(chunks) == 0 {
		return chunks, err
	}
	for i := range chunks {
		chunks[i].Embedding = []float32{1, 0}
	}
	return chunks, nil
}

type fakeExtractor struct {
	bundle models.EntityBundle
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) models.EntityBundle {
	return f.bundle
}

type countingVectorStore struct {
	*store.MemoryVectorStore
	initCalls  int
	storeCalls int
}

func (c *countingVectorStore) InitCollection(ctx context.Context) error {
	c.initCalls++
	return c.MemoryVectorStore.InitCollection(ctx)
}

func (c *countingVectorStore) Store(ctx context.Context, chunks []models.Chunk, meta models.DocumentMeta) (int, error) {
	c.storeCalls++
	return c.MemoryVectorStore.Store(ctx, chunks, meta)
}

type failingGraphStore struct {
	*store.MemoryGraphStore
	articleCalls int
}

func (f *failingGraphStore) StoreArticle(ctx context.Context, article models.ArticleRecord) error {
	f.articleCalls++
	return errors.New("connection refused")
}

func testPage() *models.ScrapedPage {
	return &models.ScrapedPage{
		Title:     "T",
		Text:      "Transformers use self-attention.",
		Domain:    "example.com",
		ScrapedAt: time.Now().UTC(),
	}
}

func TestIngestURLSuccess(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := store.NewMemoryGraphStore()
	bundle := models.EntityBundle{
		Technologies: []string{"Transformer"},
		Concepts:     []string{"self-attention"},
	}

	p := pipeline.New(&fakeScraper{page: testPage()}, &fakeChunker{}, &fakeExtractor{bundle: bundle}, vectors, graph)

	result, err := p.IngestURL(context.Background(), "https://example.com/t")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/t", result.URL)
	assert.Equal(t, "T", result.Title)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, bundle, result.Entities)
	assert.Empty(t, result.Warning)

	assert.Equal(t, 1, vectors.initCalls)
	assert.Equal(t, 1, vectors.Len())
	assert.Equal(t, 1, graph.NodeCount(models.KindArticle))
	assert.True(t, graph.HasEdge(models.KindArticle, "T", models.RelMentions, models.KindTechnology, "Transformer"))
	assert.True(t, graph.HasEdge(models.KindArticle, "T", models.RelMentions, models.KindConcept, "self-attention"))
}

func TestIngestURLScrapeFailureHasNoSideEffects(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := store.NewMemoryGraphStore()

	p := pipeline.New(&fakeScraper{err: errors.New("404")}, &fakeChunker{}, &fakeExtractor{}, vectors, graph)

	_, err := p.IngestURL(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, pipeline.ErrScrapeFailed)

	assert.Zero(t, vectors.initCalls)
	assert.Zero(t, vectors.storeCalls)
	assert.Zero(t, graph.NodeCount(models.KindArticle))
}

func TestIngestURLEmptyDocument(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := store.NewMemoryGraphStore()
	page := testPage()
	page.Text = "   "

	p := pipeline.New(&fakeScraper{page: page}, &fakeChunker{}, &fakeExtractor{}, vectors, graph)

	_, err := p.IngestURL(context.Background(), "https://example.com/empty")
	assert.ErrorIs(t, err, pipeline.ErrNoChunks)
	assert.Zero(t, vectors.storeCalls)
}

func TestIngestURLExtractionFailureStillSucceeds(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := store.NewMemoryGraphStore()

	// The extractor degrades to an empty bundle on failure; the run is still a
	// success and the article node is stored without entity edges.
	p := pipeline.New(&fakeScraper{page: testPage()}, &fakeChunker{}, &fakeExtractor{}, vectors, graph)

	result, err := p.IngestURL(context.Background(), "https://example.com/t")
	require.NoError(t, err)

	assert.True(t, result.Entities.Empty())
	assert.Empty(t, result.Warning)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, 1, graph.NodeCount(models.KindArticle))
	assert.Zero(t, graph.EdgeCount())
}

func TestIngestURLGraphFailureIsWarningNotError(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := &failingGraphStore{MemoryGraphStore: store.NewMemoryGraphStore()}
	bundle := models.EntityBundle{Topics: []string{"NLP"}}

	p := pipeline.New(&fakeScraper{page: testPage()}, &fakeChunker{}, &fakeExtractor{bundle: bundle}, vectors, graph)

	result, err := p.IngestURL(context.Background(), "https://example.com/t")
	require.NoError(t, err)

	// Vectors stay committed, entities are reported, and the failure is
	// captured as a warning.
	assert.Equal(t, 1, vectors.Len())
	assert.Equal(t, bundle, result.Entities)
	assert.Contains(t, result.Warning, "graph storage failed")
	assert.Equal(t, 1, graph.articleCalls)
}

func TestIngestURLChunkerFailure(t *testing.T) {
	vectors := &countingVectorStore{MemoryVectorStore: store.NewMemoryVectorStore()}
	graph := store.NewMemoryGraphStore()

	p := pipeline.New(&fakeScraper{page: testPage()}, &fakeChunker{err: errors.New("embedder down")}, &fakeExtractor{}, vectors, graph)

	_, err := p.IngestURL(context.Background(), "https://example.com/t")
	assert.ErrorContains(t, err, "chunking failed")
	assert.Zero(t, vectors.storeCalls)
}
