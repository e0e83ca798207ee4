package producerapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/event"
)

type fakePublisher struct {
	published []event.Envelope
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, evt event.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, evt)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(pub *fakePublisher) *httptest.Server {
	h := NewHandlers(pub, testLogger())
	return httptest.NewServer(NewRouter(h, nil))
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateEvent_Accepted(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(pub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{"event_type":"user.registered","user_id":"u1","payload":{"a":1}}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "user.registered", body["event_type"])
	assert.NotEmpty(t, body["timestamp"])

	// event_id is generated at this boundary, exactly once.
	eventID, ok := body["event_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(eventID)
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	evt := pub.published[0]
	assert.Equal(t, eventID, evt.EventID)
	assert.Equal(t, event.TypeUserRegistered, evt.EventType)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, map[string]any{"a": float64(1)}, evt.Payload)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, time.UTC, evt.Timestamp.Location())
}

func TestCreateEvent_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing event_type", `{"user_id":"u1","payload":{}}`, "event_type"},
		{"unsupported event_type", `{"event_type":"order.created","user_id":"u1","payload":{}}`, "event_type"},
		{"missing user_id", `{"event_type":"user.registered","payload":{}}`, "user_id"},
		{"missing payload", `{"event_type":"user.registered","user_id":"u1"}`, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			srv := newTestServer(pub)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			fields, ok := body["fields"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
			assert.Empty(t, pub.published)
		})
	}
}

func TestCreateEvent_InvalidJSON(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader("{oops"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEvent_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker timed out")}
	srv := newTestServer(pub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{"event_type":"user.registered","user_id":"u1","payload":{"a":1}}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "failed to publish event")
	assert.Contains(t, body["error"], "broker timed out")
}

func TestListEventTypes(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events/types")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	types, ok := body["event_types"].([]any)
	require.True(t, ok)
	assert.Len(t, types, 5)
	assert.Contains(t, types, "user.registered")
	assert.Contains(t, types, "notification.created")
	assert.NotEmpty(t, body["description"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "notification-producer-api", body["service"])
}
