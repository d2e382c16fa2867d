// Package search fuses vector similarity search with knowledge-graph
// traversal into a single human-readable report.
//
// The two retrieval passes are independent: a failure in one is rendered as
// inline diagnostic text in its own section and never hides the other. The
// fusion is textual concatenation, not score merging.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xhad/scholar/internal/types"
)

const (
	defaultLimit         = 5
	excerptLength        = 400
	minTermLength        = 4 // cheap stopword filter: keep terms longer than 3 chars
	maxConnectedEntities = 5
	maxEntityRelations   = 15
	sectionRule          = "--------------------------------------------------"
	summaryRule          = "=================================================="
)

type HybridSearcher struct {
	embedder types.Embedder
	vectors  types.VectorStore
	graph    types.GraphStore

	// ScoreThreshold excludes vector matches scoring below it; zero disables.
	ScoreThreshold float32
}

func New(embedder types.Embedder, vectors types.VectorStore, graph types.GraphStore) *HybridSearcher {
	return &HybridSearcher{
		embedder: embedder,
		vectors:  vectors,
		graph:    graph,
	}
}

// Search runs both retrieval passes and returns the combined report. It
// never returns an error: each pass degrades to inline diagnostic text.
func (h *HybridSearcher) Search(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = defaultLimit
	}
	slog.Info("performing hybrid search", "query", query, "limit", limit)

	var out strings.Builder
	out.WriteString("HYBRID SEARCH RESULTS\n\n")

	hasResults := false
	hasResults = h.vectorSection(ctx, &out, query, limit) || hasResults
	hasResults = h.graphSection(ctx, &out, query, limit) || hasResults

	out.WriteString("\n" + summaryRule + "\n")
	if hasResults {
		out.WriteString("Hybrid search completed successfully. Results from both the vector store and the knowledge graph are shown above.\n")
	} else {
		out.WriteString("No results found in either the vector store or the knowledge graph.\n")
	}

	return out.String()
}

func (h *HybridSearcher) vectorSection(ctx context.Context, out *strings.Builder, query string, limit int) bool {
	out.WriteString("VECTOR DATABASE RESULTS (Semantic Search)\n")
	out.WriteString(sectionRule + "\n")

	vector, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Error("vector search error", "error", err)
		fmt.Fprintf(out, "Vector search encountered an error: %v\n\n", err)
		return false
	}

	hits, err := h.vectors.Search(ctx, vector, limit, h.ScoreThreshold)
	if err != nil {
		slog.Error("vector search error", "error", err)
		fmt.Fprintf(out, "Vector search encountered an error: %v\n\n", err)
		return false
	}

	if len(hits) == 0 {
		out.WriteString("No semantically similar documents found.\n\n")
		return false
	}

	for i, hit := range hits {
		title := hit.Title
		if title == "" {
			title = "Unknown"
		}
		fmt.Fprintf(out, "[%d] Source: %s\n", i+1, title)
		fmt.Fprintf(out, "    Similarity Score: %.3f\n", hit.Score)
		fmt.Fprintf(out, "    Content: %s...\n\n", truncate(hit.Text, excerptLength))
	}
	return true
}

func (h *HybridSearcher) graphSection(ctx context.Context, out *strings.Builder, query string, limit int) bool {
	out.WriteString("\nKNOWLEDGE GRAPH RESULTS (Entity Relationships)\n")
	out.WriteString(sectionRule + "\n")

	terms := queryTerms(query)
	hasResults := false

	articles, err := h.graph.RelatedArticles(ctx, terms, limit)
	if err != nil {
		slog.Error("knowledge graph search error", "error", err)
		fmt.Fprintf(out, "Knowledge graph search encountered an error: %v\n", err)
		return false
	}

	if len(articles) > 0 {
		hasResults = true
		out.WriteString("\n**Related Articles from Knowledge Graph:**\n")
		for _, article := range articles {
			fmt.Fprintf(out, "\n• %s\n", article.Title)
			if article.URL != "" {
				fmt.Fprintf(out, "  URL: %s\n", article.URL)
			}
			if len(article.Entities) > 0 {
				entities := article.Entities
				if len(entities) > maxConnectedEntities {
					entities = entities[:maxConnectedEntities]
				}
				parts := make([]string, len(entities))
				for i, entity := range entities {
					parts[i] = fmt.Sprintf("%s (%s)", entity.Name, entity.Kind)
				}
				fmt.Fprintf(out, "  Connected Entities: %s\n", strings.Join(parts, ", "))
			}
		}
	} else {
		out.WriteString("No related articles found in knowledge graph.\n")
	}

	relations, err := h.graph.EntityRelations(ctx, terms, maxEntityRelations)
	if err != nil {
		slog.Error("knowledge graph search error", "error", err)
		fmt.Fprintf(out, "Knowledge graph search encountered an error: %v\n", err)
		return hasResults
	}

	if len(relations) > 0 {
		hasResults = true
		out.WriteString("\n**Entity Relationships:**\n")
		for _, rel := range relations {
			fmt.Fprintf(out, "  • (%s) %s -[%s]-> (%s) %s\n",
				rel.FromKind, rel.FromName, rel.Relation, rel.ToKind, rel.ToName)
		}
	}

	return hasResults
}

// queryTerms tokenizes the raw query into whitespace-delimited terms and
// keeps only those longer than 3 characters.
func queryTerms(query string) []string {
	var terms []string
	for _, term := range strings.Fields(query) {
		if len(term) >= minTermLength {
			terms = append(terms, term)
		}
	}
	return terms
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
