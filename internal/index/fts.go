package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/chunker"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Column weights for bm25, in doc_fts column order.
const (
	weightContent    = 10.0
	weightSummary    = 4.0
	weightKeywords   = 3.0
	weightTags       = 2.0
	weightProvenance = 1.0
)

const maxMatchTokens = 32

var bm25Expr = fmt.Sprintf("bm25(doc_fts, 0, 0, %g, %g, %g, %g, %g)",
	weightContent, weightSummary, weightKeywords, weightTags, weightProvenance)

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// FTS is a Backend on an SQLite FTS5 table. Long content is stored as
// chunks; a document matches when any chunk does.
type FTS struct {
	db   *sql.DB
	opts chunker.Options
}

var _ Backend = (*FTS)(nil)

// NewFTS opens or creates the index database at path.
func NewFTS(path string) (*FTS, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "create index dir", goerr.V("dir", dir))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, model.Unavailable(err, "open index", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	f := &FTS{db: db, opts: chunker.DefaultOptions()}
	if err := f.migrate(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "migrate index", goerr.V("path", path))
	}
	return f, nil
}

func (f *FTS) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id     TEXT PRIMARY KEY,
		scope      TEXT NOT NULL,
		type       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		chunks     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(scope);

	CREATE VIRTUAL TABLE IF NOT EXISTS doc_fts USING fts5(
		doc_id UNINDEXED,
		seq UNINDEXED,
		content,
		summary,
		keywords,
		tags,
		provenance,
		tokenize = "unicode61 tokenchars '_'"
	);
	`
	if _, err := f.db.Exec(schema); err != nil {
		return model.Unavailable(err, "create index schema")
	}
	return nil
}

func (f *FTS) PutDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return goerr.Wrap(model.ErrValidation, "document id is required")
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable(err, "begin index tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_fts WHERE doc_id = ?`, doc.ID); err != nil {
		return model.Unavailable(err, "clear document chunks", goerr.V("id", doc.ID))
	}

	chunks := chunker.Split(doc.Content, f.opts)
	if len(chunks) == 0 {
		chunks = []chunker.Chunk{{Seq: 0}}
	}
	for _, c := range chunks {
		var summary, keywords, tags, provenance string
		// Only the first chunk carries the whole-document fields.
		if c.Seq == 0 {
			summary = doc.Summary
			keywords = strings.Join(doc.Keywords, " ")
			tags = strings.Join(doc.Tags, " ")
			provenance = provenanceText(doc.Provenance)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO doc_fts (doc_id, seq, content, summary, keywords, tags, provenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, c.Seq, c.Text, summary, keywords, tags, provenance)
		if err != nil {
			return model.Unavailable(err, "insert document chunk", goerr.V("id", doc.ID), goerr.V("seq", c.Seq))
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (doc_id, scope, type, created_at, chunks) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET scope = excluded.scope, type = excluded.type,
		   created_at = excluded.created_at, chunks = excluded.chunks`,
		doc.ID, doc.Scope, string(doc.Type), doc.CreatedAt.UTC().Format(time.RFC3339Nano), len(chunks))
	if err != nil {
		return model.Unavailable(err, "upsert document", goerr.V("id", doc.ID))
	}

	if err := tx.Commit(); err != nil {
		return model.Unavailable(err, "commit document", goerr.V("id", doc.ID))
	}
	return nil
}

func (f *FTS) DeleteDocument(ctx context.Context, id string) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable(err, "begin index tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, id)
	if err != nil {
		return model.Unavailable(err, "delete document", goerr.V("id", id))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_fts WHERE doc_id = ?`, id); err != nil {
		return model.Unavailable(err, "delete document chunks", goerr.V("id", id))
	}
	if err := tx.Commit(); err != nil {
		return model.Unavailable(err, "commit delete", goerr.V("id", id))
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrNotFound, "document not found", goerr.V("id", id))
	}
	return nil
}

// Search ranks documents by their best matching chunk. Terms from Text and
// Keywords are ORed together.
func (f *FTS) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	match := buildMatchQuery(append(tokenRegex.FindAllString(strings.ToLower(q.Text), -1), q.Keywords...))
	if match == "" {
		return nil, nil
	}
	limit := normalizeLimit(q.Limit)

	where := []string{"doc_fts MATCH ?"}
	args := []interface{}{match}
	if q.Scope != "" {
		where = append(where, "d.scope = ?")
		args = append(args, q.Scope)
	}
	if len(q.Types) > 0 {
		marks := make([]string, len(q.Types))
		for i, t := range q.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "d.type IN ("+strings.Join(marks, ", ")+")")
	}
	// Enough chunk rows that grouping still yields limit documents.
	args = append(args, limit*4)

	query := fmt.Sprintf(`
		SELECT d.doc_id, d.scope, d.type, d.created_at, %[1]s AS score
		FROM doc_fts
		JOIN documents d ON d.doc_id = doc_fts.doc_id
		WHERE %[2]s
		ORDER BY %[1]s
		LIMIT ?`, bm25Expr, strings.Join(where, " AND "))

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Unavailable(err, "search index", goerr.V("match", match))
	}
	defer rows.Close()

	var hits []Hit
	seen := map[string]bool{}
	for rows.Next() {
		var (
			h         Hit
			typ       string
			createdAt string
			rank      float64
		)
		if err := rows.Scan(&h.ID, &h.Scope, &typ, &createdAt, &rank); err != nil {
			return nil, model.Unavailable(err, "scan hit")
		}
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true

		h.Type = model.MemoryType(typ)
		h.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		// bm25 is lower-is-better and negative for matches.
		h.Score = -rank
		hits = append(hits, h)
		if len(hits) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable(err, "iterate hits")
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (f *FTS) Count(ctx context.Context) (int, error) {
	var n int
	if err := f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, model.Unavailable(err, "count documents")
	}
	return n, nil
}

func (f *FTS) Close() error {
	return f.db.Close()
}

// buildMatchQuery quotes every token and ORs them so user text can never be
// parsed as FTS5 syntax.
func buildMatchQuery(tokens []string) string {
	reserved := map[string]bool{"and": true, "or": true, "not": true, "near": true}
	seen := map[string]bool{}
	var quoted []string
	for _, tok := range tokens {
		for _, part := range tokenRegex.FindAllString(strings.ToLower(tok), -1) {
			if reserved[part] || seen[part] {
				continue
			}
			seen[part] = true
			quoted = append(quoted, `"`+part+`"`)
			if len(quoted) == maxMatchTokens {
				return strings.Join(quoted, " OR ")
			}
		}
	}
	return strings.Join(quoted, " OR ")
}
