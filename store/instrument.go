package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/stevemurr/docstore-api/metrics"
)

type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so every call is timed and counted per backend.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

func (i *instrumented) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	start := time.Now()
	snaps, err := i.Store.FetchPage(ctx, collection, q)
	metrics.ObserveStoreOp(i.backend, "fetch_page", outcome(err), time.Since(start))
	if err == nil {
		metrics.ObservePageSize(i.backend, len(snaps))
	}
	return snaps, err
}

func (i *instrumented) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	start := time.Now()
	snap, err := i.Store.FetchOne(ctx, collection, id)
	metrics.ObserveStoreOp(i.backend, "fetch_one", outcome(err), time.Since(start))
	return snap, err
}
