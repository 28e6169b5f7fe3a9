package store

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Opener creates the underlying handle of a Lazy store.
type Opener func(ctx context.Context) (Store, error)

// Lazy defers opening a store until its first use. Concurrent first calls
// converge on a single handle; a failed open is not remembered, so the next
// call tries again.
type Lazy struct {
	backend string
	open    Opener
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	handle atomic.Pointer[lazyHandle]
}

type lazyHandle struct {
	store Store
}

func NewLazy(backend string, open Opener, logger *zap.SugaredLogger) *Lazy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Lazy{backend: backend, open: open, logger: logger}
}

func (l *Lazy) get(ctx context.Context) (Store, error) {
	if h := l.handle.Load(); h != nil {
		return h.store, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h := l.handle.Load(); h != nil {
		return h.store, nil
	}

	// The handle outlives the request that happens to open it.
	s, err := l.open(context.WithoutCancel(ctx))
	if err != nil {
		l.logger.Errorw("Failed to open store", "backend", l.backend, "error", err)
		return nil, storeErr(l.backend, "open", "", err)
	}
	l.handle.Store(&lazyHandle{store: s})
	l.logger.Infow("Store opened", "backend", l.backend)
	return s, nil
}

func (l *Lazy) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.FetchPage(ctx, collection, q)
}

func (l *Lazy) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	s, err := l.get(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return s.FetchOne(ctx, collection, id)
}

func (l *Lazy) Ping(ctx context.Context) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close closes the handle if it was ever opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.handle.Swap(nil)
	if h == nil {
		return nil
	}
	return h.store.Close()
}
