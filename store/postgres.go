package store

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore serves all collections from a single jsonb table.
//
// Tables:
//
//	documents(collection, key, data jsonb)  PRIMARY KEY (collection, key)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and makes sure the documents table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	parseConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	parseConfig.MinConns = int32(runtime.NumCPU())
	if parseConfig.MinConns > parseConfig.MaxConns {
		parseConfig.MinConns = parseConfig.MaxConns
	}
	parseConfig.MaxConnIdleTime = 5 * time.Minute
	parseConfig.MaxConnLifetime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, parseConfig)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres pool")
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data JSONB NOT NULL,
		PRIMARY KEY (collection, key)
	)`); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create documents table")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	// Ordered pages only filter in SQL. jsonb ordering ranks types
	// differently and compares tagged values by their text, so matching rows
	// are ordered and windowed by paginate.
	var rows pgx.Rows
	var err error
	if q.OrderBy == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT key, data::text FROM documents WHERE collection = $1 ORDER BY key COLLATE "C" LIMIT $2 OFFSET $3`,
			collection, q.Limit, q.Offset)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT key, data::text FROM documents WHERE collection = $1 AND data #> $2 IS NOT NULL ORDER BY key COLLATE "C"`,
			collection, strings.Split(q.OrderBy, "."))
	}
	if err != nil {
		return nil, storeErr("postgres", "fetch page", collection, errors.Wrap(err, "query documents"))
	}
	defer rows.Close()

	result := []Snapshot{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, storeErr("postgres", "fetch page", collection, err)
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, storeErr("postgres", "fetch page", collection, errors.Wrapf(err, "document %s", key))
		}
		result = append(result, Snapshot{ID: key, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("postgres", "fetch page", collection, err)
	}
	if q.OrderBy != "" {
		return paginate(result, q), nil
	}
	return result, nil
}

func (s *PostgresStore) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		"SELECT data::text FROM documents WHERE collection = $1 AND key = $2",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, storeErr("postgres", "fetch one", collection, err)
	}
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return Snapshot{}, storeErr("postgres", "fetch one", collection, err)
	}
	return Snapshot{ID: id, Data: doc}, nil
}

// Put inserts or replaces a document.
func (s *PostgresStore) Put(collection, id string, doc Document) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data`,
		collection, id, string(b))
	return err
}
