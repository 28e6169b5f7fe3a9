package store

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DataDir     string
	PostgresDSN string
	Firestore   FirestoreOptions
	Logger      *zap.SugaredLogger
}

// New creates a Store based on the backend name. The result is instrumented.
//
// Supported backends:
//
//	"firestore" - Cloud Firestore, opened on first use
//	"postgres"  - jsonb table reached through PostgresDSN, opened on first use
//	"json"      - JSON files in DataDir (default)
//	"sqlite"    - SQLite database at DataDir/documents.db
//	"memory"    - In-memory, preloaded from the JSON files in DataDir if any
func New(opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = "json"
	}

	var (
		s   Store
		err error
	)
	switch backend {
	case "json":
		s, err = NewJsonFileStore(opts.DataDir)
	case "sqlite":
		s, err = NewSqliteStore(filepath.Join(opts.DataDir, "documents.db"))
	case "memory":
		m := NewMemoryStore()
		if opts.DataDir != "" {
			err = m.LoadDir(opts.DataDir)
		}
		s = m
	case "firestore":
		fo := opts.Firestore
		s = NewLazy(backend, func(ctx context.Context) (Store, error) {
			return NewFirestoreStore(ctx, fo)
		}, opts.Logger)
	case "postgres":
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		dsn := opts.PostgresDSN
		s = NewLazy(backend, func(ctx context.Context) (Store, error) {
			return NewPostgresStore(ctx, dsn)
		}, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: firestore, postgres, json, sqlite, memory)", backend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, backend), nil
}
