package server_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docstore-api/handler"
	"github.com/stevemurr/docstore-api/server"
	"github.com/stevemurr/docstore-api/store"
)

func TestRunServesUntilCancelled(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Put("users", "a", store.Document{"name": "Alice"}))

	h := handler.New(s, handler.Options{})
	srv := server.New("127.0.0.1:0", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/collections/users/a")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(server.ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get(base + "/")
	assert.Error(t, err)
}

func TestRunListenError(t *testing.T) {
	h := handler.New(store.NewMemoryStore(), handler.Options{})
	srv := server.New("256.0.0.1:bad", h, nil)
	assert.Error(t, srv.Run(context.Background()))
}
