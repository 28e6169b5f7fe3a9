package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docstore-api/handler"
	"github.com/stevemurr/docstore-api/store"
)

var joined = time.Date(2021, 5, 4, 12, 30, 15, 250_000_000, time.UTC)

func setup(t *testing.T, opts handler.Options) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put("users", "a", store.Document{"name": "Alice", "joined": joined}))
	require.NoError(t, s.Put("users", "b", store.Document{"name": "Bob"}))
	require.NoError(t, s.Put("users", "c", store.Document{"name": "Carol", "id": "spoofed"}))

	ts := httptest.NewServer(handler.New(s, opts))
	t.Cleanup(ts.Close)
	return ts, s
}

func get(t *testing.T, target string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

func decodeJSONArray(t *testing.T, r io.Reader) []map[string]any {
	t.Helper()
	var v []map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

// spyStore counts calls and fails them with err.
type spyStore struct {
	calls atomic.Int32
	err   error
}

func (s *spyStore) FetchPage(context.Context, string, store.Query) ([]store.Snapshot, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *spyStore) FetchOne(context.Context, string, string) (store.Snapshot, error) {
	s.calls.Add(1)
	return store.Snapshot{}, s.err
}

func (s *spyStore) Ping(context.Context) error { return s.err }
func (s *spyStore) Close() error               { return nil }

func TestRootAndHealth(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	resp := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Firestore API is running", decodeJSON(t, resp.Body)["message"])

	resp = get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeJSON(t, resp.Body)["status"])

	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/live").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/ready").StatusCode)
}

func TestCustomStatusMessage(t *testing.T) {
	ts, _ := setup(t, handler.Options{StatusMessage: "up"})

	resp := get(t, ts.URL+"/")
	assert.Equal(t, "up", decodeJSON(t, resp.Body)["message"])
}

func TestReadinessFollowsStore(t *testing.T) {
	ts := httptest.NewServer(handler.New(&spyStore{err: errors.New("unreachable")}, handler.Options{}))
	defer ts.Close()

	assert.Equal(t, http.StatusServiceUnavailable, get(t, ts.URL+"/ready").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/live").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := setup(t, handler.Options{})
	get(t, ts.URL+"/collections/users")

	resp := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docstore_api_http_requests_total{code="200",route="/collections/:collection"}`)
}

func TestCollectionPage(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	resp := get(t, ts.URL+"/collections/users?limit=1&order_by=name&order_dir=asc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	items := decodeJSONArray(t, resp.Body)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{
		"id":     "a",
		"name":   "Alice",
		"joined": "2021-05-04T12:30:15.25Z",
	}, items[0])
}

func TestCollectionDefaults(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	items := decodeJSONArray(t, get(t, ts.URL+"/collections/users").Body)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.NotEmpty(t, it["id"])
	}
}

func TestCollectionDescendingSecondPage(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	items := decodeJSONArray(t, get(t, ts.URL+"/collections/users?order_by=name&order_dir=desc&limit=1&offset=1").Body)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])
}

func TestIDOverwritesStoredField(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	doc := decodeJSON(t, get(t, ts.URL+"/collections/users/c").Body)
	assert.Equal(t, "c", doc["id"])
	assert.Equal(t, "Carol", doc["name"])
}

func TestEmptyPages(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	for _, path := range []string{
		"/collections/users?offset=50",
		"/collections/nobody",
	} {
		resp := get(t, ts.URL+path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(body), path)
	}
}

func TestInvalidQueryParameters(t *testing.T) {
	spy := &spyStore{}
	ts := httptest.NewServer(handler.New(spy, handler.Options{}))
	defer ts.Close()

	for _, raw := range []string{
		"limit=0",
		"limit=1001",
		"limit=abc",
		"limit=",
		"offset=-1",
		"offset=1.5",
		"order_dir=ASC",
		"order_dir=up",
		"order_dir=",
		"order_dir=" + url.QueryEscape("asc "),
	} {
		resp := get(t, ts.URL+"/collections/users?"+raw)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
		assert.NotEmpty(t, decodeJSON(t, resp.Body)["detail"], raw)
	}
	assert.Zero(t, spy.calls.Load(), "store must not be called for invalid input")
}

func TestLimitBounds(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/collections/users?limit=1").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/collections/users?limit=1000").StatusCode)
}

func TestDocumentNotFound(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	resp := get(t, ts.URL+"/collections/users/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Document not found: nope", decodeJSON(t, resp.Body)["detail"])
}

func TestUnknownRoute(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	resp := get(t, ts.URL+"/nowhere")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", decodeJSON(t, resp.Body)["detail"])
}

func TestStoreFailure(t *testing.T) {
	spy := &spyStore{err: &store.Error{Backend: "firestore", Op: "query", Collection: "users", Err: errors.New("deadline\nexceeded")}}
	ts := httptest.NewServer(handler.New(spy, handler.Options{}))
	defer ts.Close()

	resp := get(t, ts.URL+"/collections/users")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	detail, _ := decodeJSON(t, resp.Body)["detail"].(string)
	assert.Equal(t, `Error fetching collection: firestore query "users": deadline exceeded`, detail)

	resp = get(t, ts.URL+"/collections/users/a")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	detail, _ = decodeJSON(t, resp.Body)["detail"].(string)
	assert.Contains(t, detail, "Error fetching document: ")
}

func TestETag(t *testing.T) {
	ts, s := setup(t, handler.Options{})
	target := ts.URL + "/collections/users/a"

	first := get(t, target)
	require.Equal(t, http.StatusOK, first.StatusCode)
	etag := first.Header.Get("ETag")
	require.NotEmpty(t, etag)

	again := get(t, target, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, again.StatusCode)

	require.NoError(t, s.Put("users", "a", store.Document{"name": "Alicia"}))
	changed := get(t, target, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, changed.StatusCode)
	assert.NotEqual(t, etag, changed.Header.Get("ETag"))
}

func TestCORS(t *testing.T) {
	ts, _ := setup(t, handler.Options{AllowedOrigins: []string{"https://app.example.com"}})

	resp := get(t, ts.URL+"/", "Origin", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(t, ts.URL+"/", "Origin", "https://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/collections/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer pre.Body.Close()
	assert.Equal(t, http.StatusNoContent, pre.StatusCode)
	assert.Equal(t, "GET, OPTIONS", pre.Header.Get("Access-Control-Allow-Methods"))
}

func TestConcurrentRequests(t *testing.T) {
	ts, _ := setup(t, handler.Options{})

	done := make(chan int, 16)
	for i := 0; i < 16; i++ {
		go func() {
			resp, err := http.Get(ts.URL + "/collections/users?order_by=name")
			if err != nil {
				done <- 0
				return
			}
			resp.Body.Close()
			done <- resp.StatusCode
		}()
	}
	for i := 0; i < 16; i++ {
		assert.Equal(t, http.StatusOK, <-done)
	}
}
