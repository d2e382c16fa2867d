package models

import "time"

// ScrapedPage is the raw output of scraping a single URL.
type ScrapedPage struct {
	URL       string
	Title     string
	Text      string
	Domain    string
	ScrapedAt time.Time
}

// DocumentMeta is the shared metadata attached to every chunk of a document
// when it is stored in the vector collection.
type DocumentMeta struct {
	SourceURL string
	Title     string
	Domain    string
	ScrapedAt time.Time
}

// Chunk is one semantically coherent span of a document. Index is the 0-based
// position within the source document. TokenCount is approximate (whitespace
// tokens). Embedding is filled in by ChunkAndEmbed, not by Chunk.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
	Embedding  []float32
}

// SearchHit is one vector-search result with its payload fields.
type SearchHit struct {
	Text      string
	Index     int
	Score     float32
	SourceURL string
	Title     string
	Domain    string
	ScrapedAt time.Time
}

// EntityBundle holds the entities extracted from one document, grouped by
// kind. A zero-value bundle means extraction found nothing or failed.
type EntityBundle struct {
	Authors      []string `json:"authors"`
	Topics       []string `json:"topics"`
	Technologies []string `json:"technologies"`
	Companies    []string `json:"companies"`
	Concepts     []string `json:"concepts"`
}

// Empty reports whether the bundle contains no entities at all.
func (b EntityBundle) Empty() bool {
	return len(b.Authors) == 0 && len(b.Topics) == 0 && len(b.Technologies) == 0 &&
		len(b.Companies) == 0 && len(b.Concepts) == 0
}

// ArticleRecord is the unit the graph store persists: one article plus its
// extracted entities.
type ArticleRecord struct {
	Title    string
	URL      string
	Domain   string
	Entities EntityBundle
}

// IngestResult is the terminal payload of a successful ingestion run.
// Warning carries a non-fatal graph-storage failure; it never changes the
// overall success status.
type IngestResult struct {
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	ChunkCount int          `json:"chunk_count"`
	Entities   EntityBundle `json:"entities"`
	Warning    string       `json:"warning,omitempty"`
}

// ArticleMatch is one knowledge-graph article hit: an article connected to an
// entity matching a query term, with up to a few of its connected entities.
type ArticleMatch struct {
	Title    string
	URL      string
	Entities []ConnectedEntity
}

// ConnectedEntity is an entity reachable from an article, with the
// relationship that connects them.
type ConnectedEntity struct {
	Kind     EntityKind
	Name     string
	Relation RelationKind
}

// EntityRelation is one direct edge between two entities, reported by the
// graph pass of hybrid search.
type EntityRelation struct {
	FromKind EntityKind
	FromName string
	Relation RelationKind
	ToKind   EntityKind
	ToName   string
}

// Episode is one logged query/response cycle, keyed by session. Append-only;
// only Feedback is ever updated after the fact.
type Episode struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	UserQuery     string    `json:"user_query"`
	AgentResponse string    `json:"agent_response"`
	AgentPath     string    `json:"agent_path"`
	ToolsUsed     []string  `json:"tools_used"`
	Feedback      string    `json:"feedback,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
