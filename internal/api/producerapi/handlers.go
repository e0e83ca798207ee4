package producerapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/event"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "producer_events_published_total",
		Help: "The total number of events accepted and published to Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "producer_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
)

// EventPublisher is the outbound side of the producer API.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.Envelope) error
}

type Handlers struct {
	publisher EventPublisher
	log       *slog.Logger
}

func NewHandlers(publisher EventPublisher, log *slog.Logger) *Handlers {
	return &Handlers{publisher: publisher, log: log}
}

type createEventRequest struct {
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id"`
	Payload   map[string]any `json:"payload"`
}

func (req createEventRequest) fieldErrors() map[string]string {
	errs := map[string]string{}
	if req.EventType == "" {
		errs["event_type"] = "field is required"
	} else if !event.Type(req.EventType).Valid() {
		errs["event_type"] = "unsupported event type"
	}
	if req.UserID == "" {
		errs["user_id"] = "field is required"
	}
	if req.Payload == nil {
		errs["payload"] = "field is required"
	}
	return errs
}

// CreateEvent stamps identity and timestamp on the submission and hands it
// to the publisher. The envelope's event_id is generated here, exactly
// once; everything downstream carries it unchanged.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	if errs := req.fieldErrors(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": errs})
		return
	}

	evt := event.Envelope{
		EventID:   uuid.New().String(),
		EventType: event.Type(req.EventType),
		UserID:    req.UserID,
		Payload:   req.Payload,
		Timestamp: time.Now().UTC(),
	}

	if err := h.publisher.Publish(r.Context(), evt); err != nil {
		publishErrors.Inc()
		h.log.Error("failed to publish event", "event_id", evt.EventID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "failed to publish event: " + err.Error(),
		})
		return
	}

	eventsPublished.Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"event_id":   evt.EventID,
		"event_type": evt.EventType,
		"timestamp":  evt.Timestamp.Format(time.RFC3339Nano),
		"status":     "success",
	})
}

func (h *Handlers) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"event_types": event.Types(),
		"description": "Supported event types for notification system",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
