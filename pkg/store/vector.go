package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/scholar/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	Collection string
	VectorDim  int
}

// VectorStore is a collection-based nearest-neighbor index on Postgres with
// the pgvector extension. One collection maps to one table; points are keyed
// by opaque UUID with a JSON payload.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

// Collection names become SQL identifiers, so they are restricted up front.
var collectionNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func NewVectorStore(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if !collectionNameRe.MatchString(config.Collection) {
		return nil, fmt.Errorf("invalid collection name: %q", config.Collection)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &VectorStore{
		config: config,
		pool:   pool,
	}, nil
}

// InitCollection ensures the collection exists with the configured dimension
// and a cosine index. Idempotent; a pre-existing collection is left as is.
func (vs *VectorStore) InitCollection(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL
		)`, vs.config.Collection, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.Collection, vs.config.Collection)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

type pointPayload struct {
	Text      string    `json:"text"`
	Index     int       `json:"index"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Domain    string    `json:"domain"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Store upserts all chunks in one batch under fresh random IDs, attaching the
// shared document metadata to every point. Empty input is a no-op returning 0.
func (vs *VectorStore) Store(ctx context.Context, chunks []models.Chunk, meta models.DocumentMeta) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3)",
		vs.config.Collection)

	for _, chunk := range chunks {
		payload, err := json.Marshal(pointPayload{
			Text:      chunk.Text,
			Index:     chunk.Index,
			SourceURL: meta.SourceURL,
			Title:     meta.Title,
			Domain:    meta.Domain,
			ScrapedAt: meta.ScrapedAt,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to encode payload: %w", err)
		}

		_, err = tx.Exec(ctx, stmt,
			uuid.New(),
			pgvector.NewVector(chunk.Embedding),
			payload,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(chunks), nil
}

// Search returns the nearest chunks by cosine similarity, best first. A
// positive scoreThreshold excludes matches below it.
func (vs *VectorStore) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT payload, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE $3 <= 0 OR 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.Collection)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vector), limit, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var raw []byte
		var score float64
		if err := rows.Scan(&raw, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var payload pointPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}

		hits = append(hits, models.SearchHit{
			Text:      payload.Text,
			Index:     payload.Index,
			Score:     float32(score),
			SourceURL: payload.SourceURL,
			Title:     payload.Title,
			Domain:    payload.Domain,
			ScrapedAt: payload.ScrapedAt,
		})
	}

	return hits, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
