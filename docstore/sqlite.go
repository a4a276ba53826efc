package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
	_ "modernc.org/sqlite"
)

// Tier scores for the non-vector search stages. The semantic tier computes
// similarity from L2 distance; full-text and keyword hits carry fixed scores
// below any plausible exact-match similarity.
const (
	fullTextScore = 0.8
	keywordScore  = 0.6
)

// Options configure the document store.
type Options struct {
	// IndexPath is the JSON snapshot file for the vector index. Empty disables
	// snapshot persistence (in-memory index only).
	IndexPath string
	Logger    logging.Logger
}

// Store implements core.DocumentStore on SQLite plus a VectorIndex.
type Store struct {
	db        *sql.DB
	index     *VectorIndex
	indexPath string
	logger    logging.Logger
}

// NewStore opens (or creates) the database at dbPath, restores the vector
// index snapshot when configured, and ensures the schema exists.
func NewStore(dbPath string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	index := NewVectorIndex()
	if opts.IndexPath != "" {
		index, err = LoadVectorIndex(opts.IndexPath)
		if err != nil {
			return nil, err
		}
	}

	s := &Store{db: db, index: index, indexPath: opts.IndexPath, logger: opts.Logger}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source_path TEXT,
		start_line INTEGER,
		end_line INTEGER,
		keywords TEXT,
		ordinal INTEGER,
		status TEXT NOT NULL DEFAULT 'active',
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_ordinal ON documents(ordinal);
	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		doc_id UNINDEXED, title, content, keywords
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Index exposes the underlying vector index for stats and tests.
func (s *Store) Index() *VectorIndex { return s.index }

// AddDocument stores the record, appending the embedding to the vector index
// when non-nil, and returns the generated document id. The write path is
// vector append, then snapshot, then metadata row, so a crash can leave at
// most one trailing unreferenced vector and never a row whose ordinal exceeds
// the restored index.
func (s *Store) AddDocument(ctx context.Context, doc core.DocumentRecord, embedding []float32) (string, error) {
	if doc.ID == "" {
		doc.ID = core.NewID()
	}
	if doc.Status == "" {
		doc.Status = core.DocumentActive
	}
	now := time.Now().UTC()
	if doc.Created.IsZero() {
		doc.Created = now
	}
	doc.Updated = now

	if embedding != nil {
		ordinal, err := s.index.Append(embedding)
		if err != nil {
			return "", fmt.Errorf("failed to append vector: %w", err)
		}
		doc.Ordinal = &ordinal
		if s.indexPath != "" {
			if err := s.index.Save(s.indexPath); err != nil {
				return "", err
			}
		}
	}

	var metadata any
	if doc.Metadata != nil {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(raw)
	}
	var ordinal any
	if doc.Ordinal != nil {
		ordinal = *doc.Ordinal
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, source_path, start_line, end_line,
		 keywords, ordinal, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, doc.SourcePath, doc.StartLine, doc.EndLine,
		doc.Keywords, ordinal, string(doc.Status), metadata, doc.Created, doc.Updated,
	); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents_fts (doc_id, title, content, keywords) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, doc.Keywords,
	); err != nil {
		return "", fmt.Errorf("failed to index document text: %w", err)
	}

	s.logger.Debug("Document added", "doc_id", doc.ID, "title", doc.Title, "has_embedding", embedding != nil)
	return doc.ID, nil
}

// Search ranks active documents against the query. Soft-deleted documents
// never surface regardless of mode. In hybrid mode tiers run in priority
// order with already-selected ids excluded from later tiers.
func (s *Store) Search(ctx context.Context, query string, embedding []float32, mode core.SearchMode, limit int) ([]core.DocumentMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	switch mode {
	case core.SearchSemantic:
		return s.semanticSearch(ctx, embedding, limit, nil)
	case core.SearchFullText:
		return s.fullTextSearch(ctx, query, limit, nil)
	case core.SearchKeyword:
		return s.keywordSearch(ctx, query, limit, nil)
	case core.SearchHybrid, "":
		return s.hybridSearch(ctx, query, embedding, limit)
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

func (s *Store) hybridSearch(ctx context.Context, query string, embedding []float32, limit int) ([]core.DocumentMatch, error) {
	seen := make(map[string]bool)
	var out []core.DocumentMatch

	if embedding != nil {
		semantic, err := s.semanticSearch(ctx, embedding, limit, seen)
		if err != nil {
			return nil, err
		}
		for _, m := range semantic {
			seen[m.ID] = true
		}
		out = append(out, semantic...)
	}

	if len(out) < limit {
		fullText, err := s.fullTextSearch(ctx, query, limit-len(out), seen)
		if err != nil {
			return nil, err
		}
		for _, m := range fullText {
			seen[m.ID] = true
		}
		out = append(out, fullText...)
	}

	if len(out) < limit {
		keyword, err := s.keywordSearch(ctx, query, limit-len(out), seen)
		if err != nil {
			return nil, err
		}
		out = append(out, keyword...)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) semanticSearch(ctx context.Context, embedding []float32, limit int, exclude map[string]bool) ([]core.DocumentMatch, error) {
	if embedding == nil || s.index.Len() == 0 {
		return nil, nil
	}
	// Over-fetch so soft-deleted and excluded hits do not shrink the result.
	hits, err := s.index.Search(embedding, limit*2+16)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var out []core.DocumentMatch
	for _, hit := range hits {
		if len(out) >= limit {
			break
		}
		doc, err := s.getByOrdinal(ctx, hit.Ordinal)
		if err != nil {
			return nil, err
		}
		if doc == nil || doc.Status != core.DocumentActive || exclude[doc.ID] {
			continue
		}
		out = append(out, toMatch(*doc, 1.0/(1.0+hit.Distance), core.TierSemantic))
	}
	return out, nil
}

func (s *Store) fullTextSearch(ctx context.Context, query string, limit int, exclude map[string]bool) ([]core.DocumentMatch, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.content, d.source_path, d.start_line, d.end_line, d.metadata
		FROM documents_fts f
		JOIN documents d ON d.id = f.doc_id
		WHERE documents_fts MATCH ? AND d.status = ?
		ORDER BY f.rank
		LIMIT ?`,
		match, string(core.DocumentActive), limit+len(exclude),
	)
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows, fullTextScore, core.TierFullText, limit, exclude)
}

func (s *Store) keywordSearch(ctx context.Context, query string, limit int, exclude map[string]bool) ([]core.DocumentMatch, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	var conds []string
	var args []any
	for _, t := range terms {
		conds = append(conds, "(instr(lower(title), ?) > 0 OR instr(lower(content), ?) > 0 OR instr(lower(keywords), ?) > 0)")
		args = append(args, t, t, t)
	}
	args = append(args, string(core.DocumentActive), limit+len(exclude))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, content, source_path, start_line, end_line, metadata
		FROM documents
		WHERE (%s) AND status = ?
		ORDER BY created_at
		LIMIT ?`, strings.Join(conds, " OR ")),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows, keywordScore, core.TierKeyword, limit, exclude)
}

func scanMatches(rows *sql.Rows, score float64, tier core.SearchTier, limit int, exclude map[string]bool) ([]core.DocumentMatch, error) {
	var out []core.DocumentMatch
	for rows.Next() {
		var (
			id, title, content  string
			sourcePath          sql.NullString
			startLine, endLine  sql.NullInt64
			metadata            sql.NullString
		)
		if err := rows.Scan(&id, &title, &content, &sourcePath, &startLine, &endLine, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if exclude[id] {
			continue
		}
		m := core.DocumentMatch{
			ID:         id,
			Title:      title,
			Content:    content,
			SourcePath: sourcePath.String,
			StartLine:  int(startLine.Int64),
			EndLine:    int(endLine.Int64),
			Similarity: score,
			Tier:       tier,
		}
		if metadata.Valid && metadata.String != "" {
			var parsed map[string]string
			if err := json.Unmarshal([]byte(metadata.String), &parsed); err == nil {
				m.Metadata = parsed
			}
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// ftsQuery turns free-form text into an FTS5 OR query of quoted terms so user
// input cannot inject match syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// GetByID fetches a single record, soft-deleted ones included.
func (s *Store) GetByID(id string) (*core.DocumentRecord, error) {
	return s.scanRecord(s.db.QueryRow(
		`SELECT id, title, content, source_path, start_line, end_line, keywords,
		 ordinal, status, metadata, created_at, updated_at
		 FROM documents WHERE id = ?`, id))
}

func (s *Store) getByOrdinal(ctx context.Context, ordinal int) (*core.DocumentRecord, error) {
	return s.scanRecord(s.db.QueryRowContext(ctx,
		`SELECT id, title, content, source_path, start_line, end_line, keywords,
		 ordinal, status, metadata, created_at, updated_at
		 FROM documents WHERE ordinal = ?`, ordinal))
}

func (s *Store) scanRecord(row *sql.Row) (*core.DocumentRecord, error) {
	var (
		doc                 core.DocumentRecord
		sourcePath          sql.NullString
		startLine, endLine  sql.NullInt64
		keywords            sql.NullString
		ordinal             sql.NullInt64
		status              string
		metadata            sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &sourcePath, &startLine, &endLine,
		&keywords, &ordinal, &status, &metadata, &doc.Created, &doc.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.SourcePath = sourcePath.String
	doc.StartLine = int(startLine.Int64)
	doc.EndLine = int(endLine.Int64)
	doc.Keywords = keywords.String
	doc.Status = core.DocumentStatus(status)
	if ordinal.Valid {
		o := int(ordinal.Int64)
		doc.Ordinal = &o
	}
	if metadata.Valid && metadata.String != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(metadata.String), &parsed); err == nil {
			doc.Metadata = parsed
		}
	}
	return &doc, nil
}

// SoftDelete marks a document inactive. Its vector stays in the index.
func (s *Store) SoftDelete(id string) error {
	res, err := s.db.Exec(
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(core.DocumentDeleted), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %q not found", id)
	}
	return nil
}

// Stats reports aggregate counters across metadata and the vector index.
func (s *Store) Stats() (core.DocumentStats, error) {
	var stats core.DocumentStats
	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(CASE WHEN status = ? THEN 1 END)
		FROM documents`, string(core.DocumentActive),
	).Scan(&stats.TotalDocuments, &stats.ActiveDocuments)
	if err != nil {
		return stats, fmt.Errorf("failed to count documents: %w", err)
	}
	stats.Vectors = s.index.Len()
	stats.Dimension = s.index.Dimension()
	return stats, nil
}

func toMatch(doc core.DocumentRecord, similarity float64, tier core.SearchTier) core.DocumentMatch {
	return core.DocumentMatch{
		ID:         doc.ID,
		Title:      doc.Title,
		Content:    doc.Content,
		SourcePath: doc.SourcePath,
		StartLine:  doc.StartLine,
		EndLine:    doc.EndLine,
		Similarity: similarity,
		Tier:       tier,
		Metadata:   doc.Metadata,
	}
}

var _ core.DocumentStore = (*Store)(nil)
