package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docstore-api/store"
)

func TestLazyOpensOnce(t *testing.T) {
	var opens atomic.Int32
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Put("users", "a", store.Document{"name": "Alice"}))

	lazy := store.NewLazy("memory", func(context.Context) (store.Store, error) {
		opens.Add(1)
		return mem, nil
	}, nil)
	assert.Equal(t, int32(0), opens.Load(), "nothing opens before first use")

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := lazy.FetchOne(ctx, "users", "a")
			assert.NoError(t, err)
			assert.Equal(t, "Alice", doc.Data["name"])
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), opens.Load())
}

func TestLazyRetriesFailedOpen(t *testing.T) {
	var opens atomic.Int32
	lazy := store.NewLazy("flaky", func(context.Context) (store.Store, error) {
		if opens.Add(1) == 1 {
			return nil, errors.New("credentials unavailable")
		}
		return store.NewMemoryStore(), nil
	}, nil)
	ctx := context.Background()

	_, err := lazy.FetchPage(ctx, "users", store.DefaultQuery())
	var serr *store.Error
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, "open", serr.Op)

	docs, err := lazy.FetchPage(ctx, "users", store.DefaultQuery())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int32(2), opens.Load())
}

func TestLazyValidatesBeforeOpening(t *testing.T) {
	lazy := store.NewLazy("never", func(context.Context) (store.Store, error) {
		t.Fatal("store opened for an invalid query")
		return nil, nil
	}, nil)

	_, err := lazy.FetchPage(context.Background(), "users", store.Query{Limit: 1, Direction: "up"})
	var verr *store.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.NoError(t, lazy.Close())
}
