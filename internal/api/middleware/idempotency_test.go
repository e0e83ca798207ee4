package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hits := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusAccepted)
	})

	return httptest.NewServer(Idempotency(client)(handler)), &hits
}

func postWithKey(t *testing.T, url, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestIdempotency_RepeatedKeyIsRejected(t *testing.T) {
	srv, hits := newTestServer(t)
	defer srv.Close()

	first := postWithKey(t, srv.URL, "abc-123")
	assert.Equal(t, http.StatusAccepted, first.StatusCode)

	second := postWithKey(t, srv.URL, "abc-123")
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("X-Idempotency-Hit"))

	assert.Equal(t, 1, *hits)
}

func TestIdempotency_DistinctKeysPass(t *testing.T) {
	srv, hits := newTestServer(t)
	defer srv.Close()

	assert.Equal(t, http.StatusAccepted, postWithKey(t, srv.URL, "key-1").StatusCode)
	assert.Equal(t, http.StatusAccepted, postWithKey(t, srv.URL, "key-2").StatusCode)
	assert.Equal(t, 2, *hits)
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	srv, hits := newTestServer(t)
	defer srv.Close()

	assert.Equal(t, http.StatusAccepted, postWithKey(t, srv.URL, "").StatusCode)
	assert.Equal(t, http.StatusAccepted, postWithKey(t, srv.URL, "").StatusCode)
	assert.Equal(t, 2, *hits)
}

func TestIdempotency_GetRequestsBypass(t *testing.T) {
	srv, hits := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Idempotency-Key", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, *hits)

	// Same key on a GET never locks; a later POST still goes through.
	assert.Equal(t, http.StatusAccepted, postWithKey(t, srv.URL, "abc-123").StatusCode)
	assert.Equal(t, 2, *hits)
}
