package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SqliteStore serves all collections from a single SQLite database.
// Documents are stored as extended JSON text.
//
// Tables:
//
//	documents(collection, key, data)  PRIMARY KEY (collection, key)
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sqlitePath converts a dotted field path into a json_extract path,
// quoting every segment.
func sqlitePath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(part, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

// FetchPage cuts unordered pages in SQL. Ordered pages only filter in SQL:
// the stored extended JSON does not sort like the values it encodes, so
// matching rows are ordered and windowed by paginate.
func (s *SqliteStore) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := "SELECT key, data FROM documents WHERE collection = ?"
	args := []any{collection}
	if q.OrderBy != "" {
		query += " AND json_type(data, ?) IS NOT NULL ORDER BY key"
		args = append(args, sqlitePath(q.OrderBy))
	} else {
		query += " ORDER BY key LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("sqlite", "fetch page", collection, errors.Wrap(err, "query documents"))
	}
	defer rows.Close()
	result := []Snapshot{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, storeErr("sqlite", "fetch page", collection, err)
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, storeErr("sqlite", "fetch page", collection, errors.Wrapf(err, "document %s", key))
		}
		result = append(result, Snapshot{ID: key, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("sqlite", "fetch page", collection, err)
	}
	if q.OrderBy != "" {
		return paginate(result, q), nil
	}
	return result, nil
}

func (s *SqliteStore) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND key = ?",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, storeErr("sqlite", "fetch one", collection, err)
	}
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return Snapshot{}, storeErr("sqlite", "fetch one", collection, err)
	}
	return Snapshot{ID: id, Data: doc}, nil
}

// Put inserts or replaces a document.
func (s *SqliteStore) Put(collection, id string, doc Document) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET data = excluded.data`,
		collection, id, string(b),
	)
	return err
}
