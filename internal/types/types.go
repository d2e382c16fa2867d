package types

import (
	"context"

	"github.com/xhad/scholar/internal/models"
)

// Core interfaces. Components accept these rather than concrete handles so
// that stores and models can be swapped in tests and alternate deployments.

// Embedder converts text to fixed-dimension vectors. Document and query
// embeddings use different instruction prefixes and are not interchangeable.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits document text into semantically coherent chunks.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]models.Chunk, error)
	ChunkAndEmbed(ctx context.Context, text string) ([]models.Chunk, error)
}

// EntityExtractor pulls structured entities out of document text. It is
// best-effort: failures yield an empty bundle, never an error that would
// abort ingestion.
type EntityExtractor interface {
	Extract(ctx context.Context, text, title string) models.EntityBundle
}

// Scraper fetches one URL and returns its extracted text and metadata.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedPage, error)
}

// VectorStore is a collection-based nearest-neighbor index over chunk
// embeddings.
type VectorStore interface {
	InitCollection(ctx context.Context) error
	Store(ctx context.Context, chunks []models.Chunk, meta models.DocumentMeta) (int, error)
	// Search returns hits ordered by descending cosine similarity. A positive
	// scoreThreshold excludes matches below it.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32) ([]models.SearchHit, error)
}

// GraphStore is a typed property graph with create-or-merge semantics on
// (kind, name).
type GraphStore interface {
	UpsertEntity(ctx context.Context, kind models.EntityKind, name string, properties map[string]any) error
	// UpsertRelationship matches both endpoints and merges the edge. If either
	// endpoint does not exist it is a silent no-op.
	UpsertRelationship(ctx context.Context, from models.EntityKind, fromName string, rel models.RelationKind, to models.EntityKind, toName string) error
	// StoreArticle upserts the article node plus one entity and edge per
	// extracted entity. Not transactional: a mid-way failure leaves every edge
	// written so far intact.
	StoreArticle(ctx context.Context, article models.ArticleRecord) error
	RelatedArticles(ctx context.Context, terms []string, limit int) ([]models.ArticleMatch, error)
	EntityRelations(ctx context.Context, terms []string, limit int) ([]models.EntityRelation, error)
	VerifyConnectivity(ctx context.Context) bool
}
