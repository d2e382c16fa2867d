package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/store"
)

func TestUpsertEntityIdempotent(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindTopic, "X", nil))
	require.NoError(t, gs.UpsertEntity(ctx, models.KindTopic, "X", nil))

	assert.Equal(t, 1, gs.NodeCount(models.KindTopic))
}

func TestUpsertEntityOverlaysProperties(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindArticle, "T", map[string]any{"url": "https://example.com", "domain": "example.com"}))
	require.NoError(t, gs.UpsertEntity(ctx, models.KindArticle, "T", map[string]any{"url": "https://example.org"}))

	props, ok := gs.NodeProps(models.KindArticle, "T")
	require.True(t, ok)
	assert.Equal(t, "https://example.org", props["url"])
	// Overlay keeps properties the second upsert did not mention.
	assert.Equal(t, "example.com", props["domain"])
}

func TestUpsertEntityRejectsUnknownKind(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	err := gs.UpsertEntity(context.Background(), models.EntityKind("Person"), "X", nil)
	assert.ErrorIs(t, err, models.ErrInvalidEntityKind)
}

func TestUpsertRelationshipIdempotent(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindArticle, "T", nil))
	require.NoError(t, gs.UpsertEntity(ctx, models.KindTopic, "NLP", nil))

	require.NoError(t, gs.UpsertRelationship(ctx, models.KindArticle, "T", models.RelAboutTopic, models.KindTopic, "NLP"))
	require.NoError(t, gs.UpsertRelationship(ctx, models.KindArticle, "T", models.RelAboutTopic, models.KindTopic, "NLP"))

	assert.Equal(t, 1, gs.EdgeCount())
}

func TestUpsertRelationshipMissingEndpointIsNoOp(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindArticle, "T", nil))

	// Target node was never created: no edge, no error.
	require.NoError(t, gs.UpsertRelationship(ctx, models.KindArticle, "T", models.RelAboutTopic, models.KindTopic, "Missing"))
	assert.Zero(t, gs.EdgeCount())
}

func TestUpsertRelationshipRejectsDisallowedPair(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindArticle, "T", nil))
	require.NoError(t, gs.UpsertEntity(ctx, models.KindAuthor, "Ada", nil))

	err := gs.UpsertRelationship(ctx, models.KindArticle, "T", models.RelMentions, models.KindAuthor, "Ada")
	assert.ErrorIs(t, err, models.ErrInvalidRelation)
}

func TestStoreArticleWithEntities(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	err := gs.StoreArticle(ctx, models.ArticleRecord{
		Title:  "T",
		URL:    "https://example.com/t",
		Domain: "example.com",
		Entities: models.EntityBundle{
			Technologies: []string{"Transformer"},
			Concepts:     []string{"self-attention"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gs.NodeCount(models.KindArticle))
	assert.Equal(t, 1, gs.NodeCount(models.KindTechnology))
	assert.Equal(t, 1, gs.NodeCount(models.KindConcept))
	assert.True(t, gs.HasEdge(models.KindArticle, "T", models.RelMentions, models.KindTechnology, "Transformer"))
	assert.True(t, gs.HasEdge(models.KindArticle, "T", models.RelMentions, models.KindConcept, "self-attention"))
}

func TestStoreArticleTwiceDoesNotDuplicate(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	article := models.ArticleRecord{
		Title:    "T",
		URL:      "https://example.com/t",
		Domain:   "example.com",
		Entities: models.EntityBundle{Topics: []string{"NLP"}, Authors: []string{"Ada"}},
	}
	require.NoError(t, gs.StoreArticle(ctx, article))
	require.NoError(t, gs.StoreArticle(ctx, article))

	assert.Equal(t, 1, gs.NodeCount(models.KindArticle))
	assert.Equal(t, 1, gs.NodeCount(models.KindTopic))
	assert.Equal(t, 1, gs.NodeCount(models.KindAuthor))
	assert.Equal(t, 2, gs.EdgeCount())
}

func TestRelatedArticles(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.StoreArticle(ctx, models.ArticleRecord{
		Title:    "T",
		URL:      "https://example.com/t",
		Domain:   "example.com",
		Entities: models.EntityBundle{Concepts: []string{"self-attention"}},
	}))
	require.NoError(t, gs.StoreArticle(ctx, models.ArticleRecord{
		Title:    "Unrelated",
		URL:      "https://example.com/u",
		Domain:   "example.com",
		Entities: models.EntityBundle{Topics: []string{"gardening"}},
	}))

	matches, err := gs.RelatedArticles(ctx, []string{"attention"}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "T", matches[0].Title)
	assert.Equal(t, "https://example.com/t", matches[0].URL)
	require.Len(t, matches[0].Entities, 1)
	assert.Equal(t, models.KindConcept, matches[0].Entities[0].Kind)
	assert.Equal(t, "self-attention", matches[0].Entities[0].Name)
	assert.Equal(t, models.RelMentions, matches[0].Entities[0].Relation)
}

func TestEntityRelations(t *testing.T) {
	gs := store.NewMemoryGraphStore()
	ctx := context.Background()

	require.NoError(t, gs.UpsertEntity(ctx, models.KindTechnology, "Transformer", nil))
	require.NoError(t, gs.UpsertEntity(ctx, models.KindCompany, "Google", nil))
	require.NoError(t, gs.UpsertRelationship(ctx, models.KindTechnology, "Transformer", models.RelDevelopedBy, models.KindCompany, "Google"))

	relations, err := gs.EntityRelations(ctx, []string{"transformer"}, 15)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "Transformer", relations[0].FromName)
	assert.Equal(t, models.RelDevelopedBy, relations[0].Relation)
	assert.Equal(t, "Google", relations[0].ToName)

	// Direction-agnostic: matching the far endpoint reports it first.
	relations, err = gs.EntityRelations(ctx, []string{"google"}, 15)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "Google", relations[0].FromName)
}

func TestMemoryVectorStoreSearchOrderingAndThreshold(t *testing.T) {
	vs := store.NewMemoryVectorStore()
	ctx := context.Background()

	meta := models.DocumentMeta{
		SourceURL: "https://example.com/t",
		Title:     "T",
		Domain:    "example.com",
		ScrapedAt: time.Now().UTC(),
	}

	count, err := vs.Store(ctx, []models.Chunk{
		{Text: "exact match", Index: 0, Embedding: []float32{1, 0}},
		{Text: "close match", Index: 1, Embedding: []float32{0.9, 0.1}},
		{Text: "orthogonal", Index: 2, Embedding: []float32{0, 1}},
	}, meta)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := vs.Search(ctx, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact match", hits[0].Text)
	assert.Equal(t, "close match", hits[1].Text)
	assert.Equal(t, "T", hits[0].Title)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)

	hits, err = vs.Search(ctx, []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = vs.Search(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemoryVectorStoreEmptyInput(t *testing.T) {
	vs := store.NewMemoryVectorStore()

	count, err := vs.Store(context.Background(), nil, models.DocumentMeta{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, vs.Len())
}

func TestReingestCreatesNewPoints(t *testing.T) {
	// Re-ingesting the same URL is not deduplicated at this layer.
	vs := store.NewMemoryVectorStore()
	ctx := context.Background()
	meta := models.DocumentMeta{SourceURL: "https://example.com/t", Title: "T"}

	chunks := []models.Chunk{{Text: "body", Index: 0, Embedding: []float32{1, 0}}}
	_, err := vs.Store(ctx, chunks, meta)
	require.NoError(t, err)
	_, err = vs.Store(ctx, chunks, meta)
	require.NoError(t, err)

	assert.Equal(t, 2, vs.Len())
}
