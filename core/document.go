package core

import "time"

// DocumentStatus marks a document record as live or soft-deleted. Deleting a
// record never removes or renumbers its vector in the embedding index.
type DocumentStatus string

const (
	DocumentActive  DocumentStatus = "active"
	DocumentDeleted DocumentStatus = "deleted"
)

// SearchTier names the search stage that produced a match. Tiers have a fixed
// priority: semantic before full-text before keyword.
type SearchTier string

const (
	TierSemantic SearchTier = "semantic"
	TierFullText SearchTier = "fulltext"
	TierKeyword  SearchTier = "keyword"
)

// SearchMode selects which tiers a DocumentStore search may use.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchFullText SearchMode = "fulltext"
	SearchKeyword  SearchMode = "keyword"
	SearchHybrid   SearchMode = "hybrid"
)

// DocumentRecord is the persisted form of a document chunk. Ordinal is the
// position of the record's vector in the append-only embedding index, nil when
// the document was stored without an embedding.
type DocumentRecord struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path,omitempty"`
	StartLine  int               `json:"start_line,omitempty"`
	EndLine    int               `json:"end_line,omitempty"`
	Keywords   string            `json:"keywords,omitempty"`
	Ordinal    *int              `json:"ordinal,omitempty"`
	Status     DocumentStatus    `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Created    time.Time         `json:"created"`
	Updated    time.Time         `json:"updated"`
}

// DocumentMatch is one ranked hit returned by the hybrid search.
type DocumentMatch struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path,omitempty"`
	StartLine  int               `json:"start_line,omitempty"`
	EndLine    int               `json:"end_line,omitempty"`
	Similarity float64           `json:"similarity"`
	Tier       SearchTier        `json:"tier"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// DocumentStats reports aggregate counters for a DocumentStore.
type DocumentStats struct {
	ActiveDocuments int `json:"active_documents"`
	TotalDocuments  int `json:"total_documents"`
	Vectors         int `json:"vectors"`
	Dimension       int `json:"dimension"`
}
