package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xhad/scholar/internal/models"
)

// In-memory implementations of the store interfaces. They back tests and the
// zero-dependency development mode; semantics mirror the real stores.

// MemoryVectorStore keeps points in a slice and searches by exact cosine
// similarity.
type MemoryVectorStore struct {
	mu     sync.RWMutex
	points []memoryPoint
}

type memoryPoint struct {
	id     uuid.UUID
	vector []float32
	hit    models.SearchHit
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

func (vs *MemoryVectorStore) InitCollection(ctx context.Context) error {
	return nil
}

func (vs *MemoryVectorStore) Store(ctx context.Context, chunks []models.Chunk, meta models.DocumentMeta) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	for _, chunk := range chunks {
		vs.points = append(vs.points, memoryPoint{
			id:     uuid.New(),
			vector: chunk.Embedding,
			hit: models.SearchHit{
				Text:      chunk.Text,
				Index:     chunk.Index,
				SourceURL: meta.SourceURL,
				Title:     meta.Title,
				Domain:    meta.Domain,
				ScrapedAt: meta.ScrapedAt,
			},
		})
	}

	return len(chunks), nil
}

func (vs *MemoryVectorStore) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()

	hits := make([]models.SearchHit, 0, len(vs.points))
	for _, point := range vs.points {
		score := cosine(vector, point.vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		hit := point.hit
		hit.Score = score
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// Len reports the number of stored points.
func (vs *MemoryVectorStore) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.points)
}

func cosine(a, b []float32) float32 {
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

// MemoryGraphStore keeps typed nodes and edges in maps with the same merge
// semantics as the Neo4j store.
type MemoryGraphStore struct {
	mu    sync.RWMutex
	nodes map[nodeKey]*memoryNode
	edges map[edgeKey]struct{}
}

type nodeKey struct {
	kind models.EntityKind
	name string
}

type memoryNode struct {
	kind  models.EntityKind
	name  string
	props map[string]any
}

type edgeKey struct {
	from nodeKey
	rel  models.RelationKind
	to   nodeKey
}

func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		nodes: make(map[nodeKey]*memoryNode),
		edges: make(map[edgeKey]struct{}),
	}
}

func (gs *MemoryGraphStore) VerifyConnectivity(ctx context.Context) bool {
	return true
}

func (gs *MemoryGraphStore) UpsertEntity(ctx context.Context, kind models.EntityKind, name string, properties map[string]any) error {
	if !kind.Valid() {
		return models.ErrInvalidEntityKind
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()

	key := nodeKey{kind: kind, name: name}
	node, ok := gs.nodes[key]
	if !ok {
		node = &memoryNode{kind: kind, name: name, props: make(map[string]any)}
		gs.nodes[key] = node
	}
	// Property overlay, not replacement.
	for k, v := range properties {
		node.props[k] = v
	}

	return nil
}

func (gs *MemoryGraphStore) UpsertRelationship(ctx context.Context, from models.EntityKind, fromName string, rel models.RelationKind, to models.EntityKind, toName string) error {
	if err := models.ValidateRelation(from, rel, to); err != nil {
		return err
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()

	fromKey := nodeKey{kind: from, name: fromName}
	toKey := nodeKey{kind: to, name: toName}
	// Endpoints are matched, not merged: a missing endpoint means no edge and
	// no error.
	if _, ok := gs.nodes[fromKey]; !ok {
		return nil
	}
	if _, ok := gs.nodes[toKey]; !ok {
		return nil
	}

	gs.edges[edgeKey{from: fromKey, rel: rel, to: toKey}] = struct{}{}
	return nil
}

func (gs *MemoryGraphStore) StoreArticle(ctx context.Context, article models.ArticleRecord) error {
	return storeArticleWithEntities(ctx, gs, article)
}

func (gs *MemoryGraphStore) RelatedArticles(ctx context.Context, terms []string, limit int) ([]models.ArticleMatch, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	var matches []models.ArticleMatch
	for key, node := range gs.nodes {
		if key.kind != models.KindArticle {
			continue
		}

		var connected []models.ConnectedEntity
		relevant := containsAnyTerm(node.name, terms)
		for edge := range gs.edges {
			if edge.from != key {
				continue
			}
			connected = append(connected, models.ConnectedEntity{
				Kind:     edge.to.kind,
				Name:     edge.to.name,
				Relation: edge.rel,
			})
			if containsAnyTerm(edge.to.name, terms) {
				relevant = true
			}
		}
		if !relevant {
			continue
		}

		sort.Slice(connected, func(i, j int) bool { return connected[i].Name < connected[j].Name })
		url, _ := node.props["url"].(string)
		matches = append(matches, models.ArticleMatch{
			Title:    node.name,
			URL:      url,
			Entities: connected,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (gs *MemoryGraphStore) EntityRelations(ctx context.Context, terms []string, limit int) ([]models.EntityRelation, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	var relations []models.EntityRelation
	for edge := range gs.edges {
		// Direction-agnostic match: the matched entity is reported first.
		if containsAnyTerm(edge.from.name, terms) {
			relations = append(relations, models.EntityRelation{
				FromKind: edge.from.kind,
				FromName: edge.from.name,
				Relation: edge.rel,
				ToKind:   edge.to.kind,
				ToName:   edge.to.name,
			})
		} else if containsAnyTerm(edge.to.name, terms) {
			relations = append(relations, models.EntityRelation{
				FromKind: edge.to.kind,
				FromName: edge.to.name,
				Relation: edge.rel,
				ToKind:   edge.from.kind,
				ToName:   edge.from.name,
			})
		}
	}

	sort.Slice(relations, func(i, j int) bool {
		if relations[i].FromName != relations[j].FromName {
			return relations[i].FromName < relations[j].FromName
		}
		return relations[i].ToName < relations[j].ToName
	})
	if limit > 0 && len(relations) > limit {
		relations = relations[:limit]
	}
	return relations, nil
}

// NodeCount reports the number of nodes of the given kind.
func (gs *MemoryGraphStore) NodeCount(kind models.EntityKind) int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	count := 0
	for key := range gs.nodes {
		if key.kind == kind {
			count++
		}
	}
	return count
}

// EdgeCount reports the total number of edges.
func (gs *MemoryGraphStore) EdgeCount() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return len(gs.edges)
}

// NodeProps returns a copy of the properties of a node, and whether it exists.
func (gs *MemoryGraphStore) NodeProps(kind models.EntityKind, name string) (map[string]any, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	node, ok := gs.nodes[nodeKey{kind: kind, name: name}]
	if !ok {
		return nil, false
	}
	props := make(map[string]any, len(node.props))
	for k, v := range node.props {
		props[k] = v
	}
	return props, true
}

// HasEdge reports whether a specific edge exists.
func (gs *MemoryGraphStore) HasEdge(from models.EntityKind, fromName string, rel models.RelationKind, to models.EntityKind, toName string) bool {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	_, ok := gs.edges[edgeKey{
		from: nodeKey{kind: from, name: fromName},
		rel:  rel,
		to:   nodeKey{kind: to, name: toName},
	}]
	return ok
}

func containsAnyTerm(name string, terms []string) bool {
	lower := strings.ToLower(name)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
