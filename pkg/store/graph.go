package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/internal/types"
)

type GraphStoreConfig struct {
	URI      string
	User     string
	Password string
}

// GraphStore is a typed property graph on Neo4j. Entity identity is
// (label, name): upserts MERGE on that pair, so re-ingesting the same
// entities never creates duplicate nodes or edges.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

func NewGraphStore(config GraphStoreConfig) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(config.URI,
		neo4j.BasicAuth(config.User, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	return &GraphStore{driver: driver}, nil
}

func (gs *GraphStore) Close(ctx context.Context) error {
	return gs.driver.Close(ctx)
}

// VerifyConnectivity is a liveness probe, non-authoritative for business
// logic.
func (gs *GraphStore) VerifyConnectivity(ctx context.Context) bool {
	if err := gs.driver.VerifyConnectivity(ctx); err != nil {
		slog.Error("graph store connectivity check failed", "error", err)
		return false
	}
	return true
}

// UpsertEntity merges a node on (kind, name) and overlays properties onto
// any existing node. The kind is validated before the label reaches Cypher.
func (gs *GraphStore) UpsertEntity(ctx context.Context, kind models.EntityKind, name string, properties map[string]any) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidEntityKind, kind)
	}

	props := map[string]any{"name": name}
	for k, v := range properties {
		props[k] = v
	}

	session := gs.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MERGE (n:%s {name: $name})
		SET n += $props
		RETURN n`, kind)

	result, err := session.Run(ctx, query, map[string]any{"name": name, "props": props})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %q: %w", kind, name, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to upsert %s %q: %w", kind, name, err)
	}

	slog.Debug("upserted entity", "kind", kind, "name", name)
	return nil
}

// UpsertRelationship matches both endpoints and merges the edge between
// them. If either endpoint does not exist the MATCH yields no rows and the
// call is a silent no-op, producing neither an edge nor an error.
func (gs *GraphStore) UpsertRelationship(ctx context.Context, from models.EntityKind, fromName string, rel models.RelationKind, to models.EntityKind, toName string) error {
	if err := models.ValidateRelation(from, rel, to); err != nil {
		return err
	}

	session := gs.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (a:%s {name: $from_name})
		MATCH (b:%s {name: $to_name})
		MERGE (a)-[r:%s]->(b)
		RETURN a, r, b`, from, to, rel)

	result, err := session.Run(ctx, query, map[string]any{
		"from_name": fromName,
		"to_name":   toName,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relationship %s: %w", rel, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to upsert relationship %s: %w", rel, err)
	}

	slog.Debug("upserted relationship", "from", fromName, "rel", rel, "to", toName)
	return nil
}

// StoreArticle upserts the article node plus every extracted entity and its
// edge. Not transactional: a mid-way failure leaves all edges written so far
// intact, which is an internally consistent partial state.
func (gs *GraphStore) StoreArticle(ctx context.Context, article models.ArticleRecord) error {
	return storeArticleWithEntities(ctx, gs, article)
}

// RelatedArticles returns articles connected to any entity (or named
// themselves) whose name case-insensitively contains any query term, with up
// to maxConnectedEntities of their connected entities each.
func (gs *GraphStore) RelatedArticles(ctx context.Context, terms []string, limit int) ([]models.ArticleMatch, error) {
	session := gs.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := `
		MATCH (a:Article)-[r]->(e)
		WHERE any(term IN $terms WHERE toLower(e.name) CONTAINS toLower(term))
		   OR any(term IN $terms WHERE toLower(a.name) CONTAINS toLower(term))
		WITH a, collect(DISTINCT {type: labels(e)[0], name: e.name, rel: type(r)}) AS entities
		RETURN DISTINCT a.name AS title, a.url AS url, entities
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]any{"terms": terms, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query related articles: %w", err)
	}

	var matches []models.ArticleMatch
	for result.Next(ctx) {
		record := result.Record()
		match := models.ArticleMatch{}

		if title, ok := record.Get("title"); ok {
			match.Title, _ = title.(string)
		}
		if url, ok := record.Get("url"); ok {
			match.URL, _ = url.(string)
		}
		if raw, ok := record.Get("entities"); ok {
			if list, ok := raw.([]any); ok {
				for _, item := range list {
					entity, ok := item.(map[string]any)
					if !ok {
						continue
					}
					kind, _ := entity["type"].(string)
					name, _ := entity["name"].(string)
					rel, _ := entity["rel"].(string)
					match.Entities = append(match.Entities, models.ConnectedEntity{
						Kind:     models.EntityKind(kind),
						Name:     name,
						Relation: models.RelationKind(rel),
					})
				}
			}
		}

		matches = append(matches, match)
	}

	return matches, result.Err()
}

// EntityRelations returns entities whose name contains any query term,
// together with their direct relationships to other entities, in either
// direction.
func (gs *GraphStore) EntityRelations(ctx context.Context, terms []string, limit int) ([]models.EntityRelation, error) {
	session := gs.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := `
		MATCH (e)-[r]-(related)
		WHERE any(term IN $terms WHERE toLower(e.name) CONTAINS toLower(term))
		RETURN DISTINCT labels(e)[0] AS entity_type, e.name AS entity_name,
		       type(r) AS relationship, labels(related)[0] AS related_type,
		       related.name AS related_name
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]any{"terms": terms, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query entity relations: %w", err)
	}

	var relations []models.EntityRelation
	for result.Next(ctx) {
		record := result.Record()
		relation := models.EntityRelation{}

		if v, ok := record.Get("entity_type"); ok {
			s, _ := v.(string)
			relation.FromKind = models.EntityKind(s)
		}
		if v, ok := record.Get("entity_name"); ok {
			relation.FromName, _ = v.(string)
		}
		if v, ok := record.Get("relationship"); ok {
			s, _ := v.(string)
			relation.Relation = models.RelationKind(s)
		}
		if v, ok := record.Get("related_type"); ok {
			s, _ := v.(string)
			relation.ToKind = models.EntityKind(s)
		}
		if v, ok := record.Get("related_name"); ok {
			relation.ToName, _ = v.(string)
		}

		relations = append(relations, relation)
	}

	return relations, result.Err()
}

// storeArticleWithEntities is the shared orchestration for StoreArticle: one
// Article upsert, then one entity upsert and one relationship upsert per
// extracted entity, in bundle order.
func storeArticleWithEntities(ctx context.Context, gs types.GraphStore, article models.ArticleRecord) error {
	err := gs.UpsertEntity(ctx, models.KindArticle, article.Title, map[string]any{
		"url":    article.URL,
		"domain": article.Domain,
	})
	if err != nil {
		return err
	}

	groups := []struct {
		kind  models.EntityKind
		rel   models.RelationKind
		names []string
	}{
		{models.KindAuthor, models.RelWrittenBy, article.Entities.Authors},
		{models.KindTopic, models.RelAboutTopic, article.Entities.Topics},
		{models.KindTechnology, models.RelMentions, article.Entities.Technologies},
		{models.KindCompany, models.RelMentions, article.Entities.Companies},
		{models.KindConcept, models.RelMentions, article.Entities.Concepts},
	}

	for _, group := range groups {
		for _, name := range group.names {
			if err := gs.UpsertEntity(ctx, group.kind, name, nil); err != nil {
				return err
			}
			if err := gs.UpsertRelationship(ctx, models.KindArticle, article.Title, group.rel, group.kind, name); err != nil {
				return err
			}
		}
	}

	slog.Info("stored article with entities", "title", article.Title)
	return nil
}
