// Package pipeline orchestrates the ingestion of one source document:
// scrape, chunk and embed, store vectors, extract entities, store graph.
//
// The first two steps fail fast; entity extraction and graph storage are
// best-effort and never fail the overall run. A graph-storage failure is
// captured on the result as a warning rather than swallowed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
)

var (
	ErrScrapeFailed = errors.New("scraping failed")
	ErrNoChunks     = errors.New("no chunks created from the document")
)

type Pipeline struct {
	scraper   types.Scraper
	chunker   types.Chunker
	extractor types.EntityExtractor
	vectors   types.VectorStore
	graph     types.GraphStore
}

func New(scraper types.Scraper, chunker types.Chunker, extractor types.EntityExtractor, vectors types.VectorStore, graph types.GraphStore) *Pipeline {
	return &Pipeline{
		scraper:   scraper,
		chunker:   chunker,
		extractor: extractor,
		vectors:   vectors,
		graph:     graph,
	}
}

// IngestURL runs the full ingestion flow for one URL. On scrape failure or
// an empty document nothing is stored anywhere.
func (p *Pipeline) IngestURL(ctx context.Context, url string) (*models.IngestResult, error) {
	page, err := p.scraper.Scrape(ctx, url)
	if err != nil {
		slog.Error("scraping failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrScrapeFailed, err)
	}

	chunks, err := p.chunker.ChunkAndEmbed(ctx, page.Text)
	if err != nil {
		return nil, fmt.Errorf("chunking failed for %s: %w", url, err)
	}
	if len(chunks) == 0 {
		slog.Error("no chunks created", "url", url)
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, url)
	}

	meta := models.DocumentMeta{
		SourceURL: page.URL,
		Title:     page.Title,
		Domain:    page.Domain,
		ScrapedAt: page.ScrapedAt,
	}

	if err := p.vectors.InitCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize vector collection: %w", err)
	}

	count, err := p.vectors.Store(ctx, chunks, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks for %s: %w", url, err)
	}
	slog.Info("stored chunks", "url", url, "count", count)

	// Best-effort from here on: extraction failures yield an empty bundle and
	// graph failures must not roll back the committed vectors.
	entities := p.extractor.Extract(ctx, page.Text, page.Title)

	result := &models.IngestResult{
		URL:        url,
		Title:      page.Title,
		ChunkCount: count,
		Entities:   entities,
	}

	article := models.ArticleRecord{
		Title:    page.Title,
		URL:      page.URL,
		Domain:   page.Domain,
		Entities: entities,
	}
	if err := p.graph.StoreArticle(ctx, article); err != nil {
		slog.Error("failed to store entities in graph", "url", url, "error", err)
		result.Warning = fmt.Sprintf("graph storage failed: %v", err)
	}

	return result, nil
}
