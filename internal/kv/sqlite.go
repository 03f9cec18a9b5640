package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// SQLite implements Store on a single SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens or creates a SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "create db dir", goerr.V("dir", dir))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, model.Unavailable(err, "open db", goerr.V("path", dbPath))
	}
	// SQLite has a single writer; one connection keeps read-modify-write
	// transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "migrate", goerr.V("path", dbPath))
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		pk         TEXT NOT NULL,
		sk         TEXT NOT NULL,
		scope_key  TEXT NOT NULL,
		type_key   TEXT NOT NULL,
		id_key     TEXT NOT NULL,
		data       BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (pk, sk)
	);
	CREATE INDEX IF NOT EXISTS idx_items_scope ON items(scope_key, sk);
	CREATE INDEX IF NOT EXISTS idx_items_type ON items(type_key, sk);
	CREATE INDEX IF NOT EXISTS idx_items_id ON items(id_key, sk);
	CREATE INDEX IF NOT EXISTS idx_items_expires ON items(expires_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return model.Unavailable(err, "create schema")
	}
	return nil
}

func indexColumn(i Index) string {
	switch i {
	case IndexScope:
		return "scope_key"
	case IndexType:
		return "type_key"
	case IndexID:
		return "id_key"
	}
	return "pk"
}

func (s *SQLite) ConditionalPut(ctx context.Context, item Item) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (pk, sk, scope_key, type_key, id_key, data, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pk, sk) DO NOTHING`,
		item.PK, item.SK, item.ScopeKey, item.TypeKey, item.IDKey, item.Data, item.ExpiresAt)
	if err != nil {
		return model.Unavailable(err, "insert item", goerr.V("pk", item.PK), goerr.V("sk", item.SK))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Unavailable(err, "rows affected")
	}
	if n == 0 {
		return goerr.Wrap(model.ErrConflict, "item exists", goerr.V("pk", item.PK), goerr.V("sk", item.SK))
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key Key) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pk, sk, scope_key, type_key, id_key, data, expires_at
		 FROM items WHERE pk = ? AND sk = ?`, key.PK, key.SK)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "item not found", goerr.V("pk", key.PK), goerr.V("sk", key.SK))
	}
	if err != nil {
		return nil, model.Unavailable(err, "get item", goerr.V("pk", key.PK))
	}
	return &it, nil
}

func (s *SQLite) Query(ctx context.Context, in QueryInput) (*QueryOutput, error) {
	limit := normalizeLimit(in.Limit)
	col := indexColumn(in.Index)

	where := []string{col + " = ?"}
	args := []interface{}{in.Partition}

	if in.SKPrefix != "" {
		where = append(where, "sk >= ?", "sk < ?")
		args = append(args, in.SKPrefix, prefixEnd(in.SKPrefix))
	}

	order := "DESC"
	if in.ScanForward {
		order = "ASC"
	}

	if in.Cursor != "" {
		after, err := DecodeCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
		if in.ScanForward {
			where = append(where, "sk > ?")
		} else {
			where = append(where, "sk < ?")
		}
		args = append(args, after)
	}

	query := fmt.Sprintf(`
		SELECT pk, sk, scope_key, type_key, id_key, data, expires_at
		FROM items WHERE %s
		ORDER BY sk %s
		LIMIT ?`, strings.Join(where, " AND "), order)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Unavailable(err, "query items", goerr.V("index", in.Index.String()), goerr.V("partition", in.Partition))
	}
	defer rows.Close()

	out := &QueryOutput{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, model.Unavailable(err, "scan item")
		}
		out.Items = append(out.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable(err, "iterate items")
	}

	if len(out.Items) > limit {
		out.Items = out.Items[:limit]
		out.NextCursor = EncodeCursor(out.Items[limit-1].SK)
	}
	return out, nil
}

func (s *SQLite) Update(ctx context.Context, key Key, fn func(*Item) error) (*Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.Unavailable(err, "begin tx")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT pk, sk, scope_key, type_key, id_key, data, expires_at
		 FROM items WHERE pk = ? AND sk = ?`, key.PK, key.SK)
	prev, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "item not found", goerr.V("pk", key.PK), goerr.V("sk", key.SK))
	}
	if err != nil {
		return nil, model.Unavailable(err, "get item for update", goerr.V("pk", key.PK))
	}

	next := prev
	if err := fn(&next); err != nil {
		return nil, err
	}
	pin(&next, prev)

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET data = ?, expires_at = ? WHERE pk = ? AND sk = ?`,
		next.Data, next.ExpiresAt, key.PK, key.SK)
	if err != nil {
		return nil, model.Unavailable(err, "update item", goerr.V("pk", key.PK))
	}
	if err := tx.Commit(); err != nil {
		return nil, model.Unavailable(err, "commit update", goerr.V("pk", key.PK))
	}
	return &next, nil
}

func (s *SQLite) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE pk = ? AND sk = ?`, key.PK, key.SK)
	if err != nil {
		return model.Unavailable(err, "delete item", goerr.V("pk", key.PK))
	}
	return nil
}

func (s *SQLite) ScanExpired(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pk, sk, scope_key, type_key, id_key, data, expires_at
		 FROM items WHERE expires_at > 0 AND expires_at <= ?
		 ORDER BY expires_at LIMIT ?`, now.Unix(), normalizeLimit(limit))
	if err != nil {
		return nil, model.Unavailable(err, "scan expired")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, model.Unavailable(err, "scan item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable(err, "iterate expired")
	}
	return items, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (Item, error) {
	var it Item
	err := row.Scan(&it.PK, &it.SK, &it.ScopeKey, &it.TypeKey, &it.IDKey, &it.Data, &it.ExpiresAt)
	return it, err
}
